package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photocal/internal/apiclient"
	"photocal/internal/imaging"
	"photocal/internal/models"
	"photocal/internal/screen"
)

const (
	btnBack     = "Назад"
	btnCancel   = "Отмена"
	btnSummary  = "Итоги дня"
	btnProfile  = "Профиль"
	btnSkip     = "Пропустить"
	btnEndDay   = "Завершить день"
	btnOpenApp  = "Открыть дневник"
	cbEndDayYes = "endday:yes"
	cbEndDayNo  = "endday:no"

	maxPhotoBytes = 20 << 20
)

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	t.logger.Infow("Handling command", "command", message.Command(), "user_id", userID)

	switch message.Command() {
	case "start":
		s := t.reset(ctx, userID, chatID)

		welcome := "👋 Приветствую! Я веду ваш дневник питания: добавляйте приёмы пищи, присылайте фото блюд, а я оценю калорийность и подведу итоги дня."
		var markup interface{}
		if t.webAppURL != "" {
			markup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnOpenApp, t.webAppURL)),
			)
		}
		t.send(chatID, welcome, markup)

		s.mu.Lock()
		t.show(ctx, s)
		s.mu.Unlock()

	case "help":
		t.send(chatID, "Команды:\n/start: начать заново\n/today: дневник за сегодня\n/summary: итоги дня\n/profile: изменить профиль", nil)

	case "today", "profile", "summary":
		s := t.lookup(userID)
		if s == nil {
			t.send(chatID, "Пожалуйста, используйте /start для начала работы с ботом.", nil)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		switch message.Command() {
		case "today":
			if s.machine.State() == screen.Home {
				t.show(ctx, s)
				return
			}
			t.send(chatID, "Сначала завершите текущее действие или нажмите «Назад».", nil)
		case "profile":
			t.fire(ctx, s, screen.EditProfile)
		case "summary":
			t.fire(ctx, s, screen.OpenSummary)
		}

	default:
		t.send(chatID, "Неизвестная команда. Используйте /start для начала работы.", nil)
	}
}

// handleMessage processes regular messages based on the user's screen
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message, detach bool) {
	chatID := message.Chat.ID
	s := t.lookup(message.From.ID)
	if s == nil {
		t.send(chatID, "Пожалуйста, используйте /start для начала работы с ботом.", nil)
		return
	}

	s.mu.Lock()
	job := t.dispatch(ctx, s, message)
	s.mu.Unlock()

	if job == nil {
		return
	}
	if !detach {
		t.runAnalysis(ctx, s, job)
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.runAnalysis(ctx, s, job)
	}()
}

// dispatch handles a message with the session locked. A returned job must
// be run after unlocking.
func (t *TelegramBot) dispatch(ctx context.Context, s *session, message *tgbotapi.Message) *analysisJob {
	text := strings.TrimSpace(message.Text)

	switch s.machine.State() {
	case screen.Profile:
		if text == btnCancel {
			t.fire(ctx, s, screen.Cancel)
			return nil
		}
		t.handleProfileStep(ctx, s, text)

	case screen.Home:
		switch text {
		case s.chrome.MainButtonText:
			t.fire(ctx, s, screen.OpenAddFood)
		case btnSummary:
			t.fire(ctx, s, screen.OpenSummary)
		case btnProfile:
			t.fire(ctx, s, screen.EditProfile)
		default:
			t.send(s.chatID, "Выберите действие с помощью кнопок ниже.", homeKeyboard(s.chrome))
		}

	case screen.AddFood:
		if text == btnBack {
			if t.analyzer != nil {
				t.analyzer.Cancel(s.owner)
			}
			t.fire(ctx, s, screen.Cancel)
			return nil
		}
		return t.handleFoodStep(ctx, s, message)

	case screen.DailySummary:
		switch text {
		case btnBack:
			t.fire(ctx, s, screen.CloseSummary)
		case btnEndDay:
			t.send(s.chatID, "Очистить дневник питания за сегодня? Данные будут удалены безвозвратно.",
				tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("Да, очистить", cbEndDayYes),
					tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbEndDayNo),
				)))
		default:
			t.send(s.chatID, "Выберите действие с помощью кнопок ниже.", summaryKeyboard(s.chrome))
		}
	}
	return nil
}

// handleCallbackQuery processes callback queries from inline keyboards
func (t *TelegramBot) handleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery) {
	t.logger.Infow("Received callback query",
		"user_id", callbackQuery.From.ID,
		"data", callbackQuery.Data)

	// Acknowledge the callback
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackQuery.ID, "")); err != nil {
		t.logger.Warnw("Failed to answer callback", "error", err)
	}

	s := t.lookup(callbackQuery.From.ID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.State() != screen.DailySummary {
		return
	}

	switch callbackQuery.Data {
	case cbEndDayYes:
		if err := t.diary.EndDay(ctx, s.owner, t.diary.Today()); err != nil {
			t.logger.Errorw("Failed to end day", "owner", s.owner, "error", err)
			t.send(s.chatID, "Не удалось завершить день. Попробуйте ещё раз.", nil)
			return
		}
		t.notify(s.chatID, tgbotapi.ChatTyping)
		t.send(s.chatID, "✅ День завершён, дневник очищен.", nil)
		t.fire(ctx, s, screen.DayEnded)
	case cbEndDayNo:
		t.send(s.chatID, "Хорошо, дневник остаётся без изменений.", summaryKeyboard(s.chrome))
	}
}

// fire applies event and shows the resulting screen.
func (t *TelegramBot) fire(ctx context.Context, s *session, event screen.Event) {
	hasProfile := t.diary.Profile(ctx, s.owner) != nil
	if err := s.machine.Fire(event, screen.Context{HasProfile: hasProfile}); err != nil {
		t.logger.Debugw("Ignoring event", "owner", s.owner, "error", err)
		if !hasProfile {
			t.send(s.chatID, "Сначала заполните профиль.", nil)
		} else {
			t.send(s.chatID, "Сначала завершите текущее действие или нажмите «Назад».", nil)
		}
		return
	}
	t.show(ctx, s)
}

// show renders the current screen and resets its form.
func (t *TelegramBot) show(ctx context.Context, s *session) {
	switch s.machine.State() {
	case screen.Profile:
		s.step = stepGender
		s.profile = models.UserProfile{}
		t.send(s.chatID, "Заполните профиль, чтобы рассчитать вашу норму. Укажите ваш пол:",
			choiceKeyboard(genderLabels(), t.diary.Profile(ctx, s.owner) != nil))

	case screen.Home:
		s.step = stepNone
		day := t.diary.Day(ctx, s.owner, t.diary.Today())
		t.send(s.chatID, formatHome(day), homeKeyboard(s.chrome))

	case screen.AddFood:
		s.step = stepMealType
		s.entry = models.FoodEntry{}
		s.draft++
		labels := make([]string, 0, len(models.MealTypes))
		for _, m := range models.MealTypes {
			labels = append(labels, m.Label())
		}
		t.send(s.chatID, "Выберите тип приёма пищи:", backKeyboard(s.chrome, labels...))

	case screen.DailySummary:
		s.step = stepNone
		t.showSummary(ctx, s)
	}
}

func (t *TelegramBot) showSummary(ctx context.Context, s *session) {
	meals := t.diary.Entries(ctx, s.owner, t.diary.Today())
	if len(meals) == 0 {
		t.send(s.chatID, "Не удалось получить итоги: нет данных о приемах пищи за сегодня.", backKeyboard(s.chrome))
		return
	}

	t.notify(s.chatID, tgbotapi.ChatTyping)
	t.send(s.chatID, "Анализируем ваш рацион...", nil)

	summary, err := t.summarizer.GetDailySummary(ctx, meals, t.diary.Profile(ctx, s.owner))
	if err != nil {
		t.logger.Warnw("Daily summary failed", "owner", s.owner, "error", err)
		t.send(s.chatID, "Не удалось получить итоги: "+escape(err.Error()), backKeyboard(s.chrome))
		return
	}
	t.send(s.chatID, formatSummary(summary), summaryKeyboard(s.chrome))
}

func (t *TelegramBot) handleProfileStep(ctx context.Context, s *session, text string) {
	hasProfile := t.diary.Profile(ctx, s.owner) != nil

	switch s.step {
	case stepGender:
		g, ok := models.ParseGender(text)
		if !ok {
			t.send(s.chatID, fieldMessage(models.UserProfile{}, "gender"), choiceKeyboard(genderLabels(), hasProfile))
			return
		}
		s.profile.Gender = g
		s.step = stepAge
		t.send(s.chatID, "Укажите ваш возраст (полных лет):", cancelKeyboard(hasProfile))

	case stepAge, stepHeight, stepWeight:
		field, next, prompt := "age", stepHeight, "Укажите ваш рост в сантиметрах (например, 175):"
		switch s.step {
		case stepHeight:
			field, next, prompt = "height", stepWeight, "Укажите ваш вес в килограммах (например, 70):"
		case stepWeight:
			field, next, prompt = "weight", stepGoal, "Какая у вас цель?"
		}

		v, err := parseNumber(text)
		draft := s.profile
		setField(&draft, field, v)
		if err != nil || fieldMessage(draft, field) != "" {
			msg := fieldMessage(draft, field)
			if msg == "" {
				msg = fieldMessage(models.UserProfile{}, field)
			}
			t.send(s.chatID, msg, cancelKeyboard(hasProfile))
			return
		}

		s.profile = draft
		s.step = next
		if next == stepGoal {
			t.send(s.chatID, prompt, choiceKeyboard(goalLabels(), hasProfile))
			return
		}
		t.send(s.chatID, prompt, cancelKeyboard(hasProfile))

	case stepGoal:
		g, ok := models.ParseGoal(text)
		if !ok {
			t.send(s.chatID, fieldMessage(models.UserProfile{}, "goal"), choiceKeyboard(goalLabels(), hasProfile))
			return
		}
		s.profile.Goal = g

		if err := t.diary.SaveProfile(ctx, s.owner, s.profile); err != nil {
			t.logger.Errorw("Failed to save profile", "owner", s.owner, "error", err)
			t.send(s.chatID, "Не удалось сохранить профиль. Попробуйте ещё раз.", nil)
			return
		}
		t.notify(s.chatID, tgbotapi.ChatTyping)
		t.send(s.chatID, "✅ Профиль сохранён!", nil)
		t.fire(ctx, s, screen.ProfileSaved)
	}
}

type analysisJob struct {
	draft       uint64
	image       string
	description string
}

func (t *TelegramBot) handleFoodStep(ctx context.Context, s *session, message *tgbotapi.Message) *analysisJob {
	text := strings.TrimSpace(message.Text)

	switch s.step {
	case stepMealType:
		m, ok := models.ParseMealType(text)
		if !ok {
			t.send(s.chatID, "Пожалуйста, выберите тип", nil)
			return nil
		}
		s.entry.MealType = m
		s.step = stepName
		t.send(s.chatID, "Название блюда (например: Овсянка с фруктами):", backKeyboard(s.chrome))

	case stepName:
		if text == "" {
			t.send(s.chatID, "Пожалуйста, введите название", nil)
			return nil
		}
		s.entry.Name = text
		s.step = stepDescription
		t.send(s.chatID, "Описание: ингредиенты, размер порции (например: 200г овсянки, банан, 10г мёда):",
			backKeyboard(s.chrome, btnSkip))

	case stepDescription:
		if text != btnSkip {
			s.entry.Description = text
		}
		s.step = stepPhoto
		t.send(s.chatID, "Пришлите фото блюда, и я оценю калорийность и БЖУ.", backKeyboard(s.chrome, btnSkip))

	case stepPhoto, stepAnalyzing:
		if len(message.Photo) == 0 {
			if text == btnSkip && s.step == stepPhoto {
				t.saveEntry(ctx, s)
				return nil
			}
			t.send(s.chatID, "Пришлите фото или нажмите «Пропустить».", nil)
			return nil
		}

		dataURL, err := t.fetchPhoto(ctx, message.Photo)
		if err != nil {
			t.logger.Warnw("Failed to fetch photo", "owner", s.owner, "error", err)
			t.send(s.chatID, "Не удалось загрузить фото. Попробуйте ещё раз.", nil)
			return nil
		}
		if imaging.IsDataURLTooBig(dataURL, t.maxPhotoKB) {
			t.send(s.chatID, fmt.Sprintf("Фото слишком большое (больше %d КБ). Пришлите другое.", t.maxPhotoKB), nil)
			return nil
		}
		s.entry.Photo = dataURL

		if t.analyzer == nil {
			t.saveEntry(ctx, s)
			return nil
		}

		s.step = stepAnalyzing
		s.draft++
		t.notify(s.chatID, tgbotapi.ChatTyping)
		t.send(s.chatID, "🔍 Анализирую фото...", backKeyboard(s.chrome))
		return &analysisJob{
			draft:       s.draft,
			image:       analysisPayload(dataURL),
			description: s.entry.Description,
		}
	}
	return nil
}

// runAnalysis calls the gateway without holding the session lock and
// applies the result only if the user is still on the same draft.
func (t *TelegramBot) runAnalysis(ctx context.Context, s *session, job *analysisJob) {
	res, err := t.analyzer.Analyze(ctx, s.owner, job.image, job.description)
	if errors.Is(err, apiclient.ErrSuperseded) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.State() != screen.AddFood || s.step != stepAnalyzing || s.draft != job.draft {
		return
	}

	if err != nil {
		t.logger.Warnw("Photo analysis failed", "owner", s.owner, "error", err)
		t.send(s.chatID, "Не удалось проанализировать фото: "+escape(err.Error())+"\nЗапись сохранена без оценки.", nil)
	} else {
		s.entry.Nutrients = res.Nutrients()
		if s.entry.Description == "" {
			s.entry.Description = res.Description
		}
	}
	t.saveEntry(ctx, s)
}

func (t *TelegramBot) saveEntry(ctx context.Context, s *session) {
	e, err := t.diary.AddEntry(ctx, s.owner, s.entry)
	if err != nil {
		t.logger.Errorw("Failed to save entry", "owner", s.owner, "error", err)
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			t.send(s.chatID, escape(verrs.Error()), nil)
			return
		}
		t.send(s.chatID, "Не удалось сохранить запись. Попробуйте ещё раз.", nil)
		return
	}

	t.send(s.chatID, "✅ Добавлено: "+formatEntry(e), nil)
	t.fire(ctx, s, screen.FoodSaved)
}

// fetchPhoto downloads the largest size of a photo and compresses it.
func (t *TelegramBot) fetchPhoto(ctx context.Context, sizes []tgbotapi.PhotoSize) (string, error) {
	largest := sizes[len(sizes)-1]
	url, err := t.api.GetFileDirectURL(largest.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download photo: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}

	dataURL, ok := t.compressor.CompressOrOriginal(data)
	if !ok {
		t.logger.Warnw("Photo compression failed, keeping original", "bytes", len(data))
	}
	return dataURL, nil
}

// analysisPayload strips the JPEG data URL prefix; other formats are sent
// as full data URLs.
func analysisPayload(dataURL string) string {
	const jpegPrefix = "data:image/jpeg;base64,"
	if strings.HasPrefix(dataURL, jpegPrefix) {
		return strings.TrimPrefix(dataURL, jpegPrefix)
	}
	return dataURL
}

func parseNumber(text string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
}

func setField(p *models.UserProfile, field string, v float64) {
	switch field {
	case "age":
		p.Age = v
	case "height":
		p.Height = v
	case "weight":
		p.Weight = v
	}
}

// fieldMessage returns the validation message for one profile field, or ""
// when the field is valid.
func fieldMessage(p models.UserProfile, field string) string {
	var verrs models.ValidationErrors
	if errors.As(p.Validate(), &verrs) {
		return verrs[field]
	}
	return ""
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
