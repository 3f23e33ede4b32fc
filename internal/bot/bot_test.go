package bot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocal/internal/apiclient"
	"photocal/internal/diary"
	"photocal/internal/models"
	"photocal/internal/storage"
	"photocal/internal/storage/memory"
	"photocal/pkg/logger"
)

const testUser int64 = 7

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	fileURL  string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file")
	}
	return f.fileURL, nil
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return f.messages[len(f.messages)-1]
}

// sentSince returns the texts sent after the first n messages.
func (f *fakeSender) sentSince(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages[n:] {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeFoodAnalyzer struct {
	mu     sync.Mutex
	images []string
	result *models.AnalysisResult
	err    error
	// block holds each call until it is closed or the call is cancelled.
	block chan struct{}
}

func (f *fakeFoodAnalyzer) AnalyzeFood(ctx context.Context, img, _ string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	f.images = append(f.images, img)
	block, res, err := f.block, f.result, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (f *fakeFoodAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

type fakeSummarizer struct {
	text  string
	err   error
	meals []models.FoodEntry
}

func (f *fakeSummarizer) GetDailySummary(_ context.Context, meals []models.FoodEntry, _ *models.UserProfile) (string, error) {
	f.meals = meals
	return f.text, f.err
}

type harness struct {
	bot        *TelegramBot
	sender     *fakeSender
	repo       *diary.Repository
	analyzer   *fakeFoodAnalyzer
	summarizer *fakeSummarizer
	owner      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sender:     &fakeSender{},
		repo:       diary.New(storage.NewAdapter(memory.New(), logger.NewNop()), nil, logger.NewNop()),
		analyzer:   &fakeFoodAnalyzer{},
		summarizer: &fakeSummarizer{},
		owner:      diary.OwnerKey(testUser),
	}
	h.bot = New(h.sender, Options{
		Diary:      h.repo,
		Analyzer:   apiclient.NewAnalyzer(h.analyzer),
		Summarizer: h.summarizer,
	}, logger.NewNop())
	return h
}

func (h *harness) withProfile(t *testing.T) {
	t.Helper()
	err := h.repo.SaveProfile(context.Background(), h.owner, models.UserProfile{
		Gender: models.GenderFemale, Age: 28, Height: 165, Weight: 60, Goal: models.GoalWeightLoss,
	})
	require.NoError(t, err)
}

func commandUpdate(name string) tgbotapi.Update {
	text := "/" + name
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUser},
		Chat:     &tgbotapi.Chat{ID: testUser},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUser},
		Chat: &tgbotapi.Chat{ID: testUser},
		Text: text,
	}}
}

func photoUpdate() tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:  &tgbotapi.User{ID: testUser},
		Chat:  &tgbotapi.Chat{ID: testUser},
		Photo: []tgbotapi.PhotoSize{{FileID: "small", Width: 90, Height: 60}, {FileID: "large", Width: 1200, Height: 800}},
	}}
}

func (h *harness) command(name string) {
	h.bot.HandleUpdate(context.Background(), commandUpdate(name))
}

func (h *harness) say(text string) {
	h.bot.HandleUpdate(context.Background(), textUpdate(text))
}

func (h *harness) photo() {
	h.bot.HandleUpdate(context.Background(), photoUpdate())
}

func (h *harness) callback(data string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: testUser},
		Data: data,
	}})
}

// poll feeds updates through the same path as long polling and waits for
// every queued handler to finish.
func (h *harness) poll(t *testing.T, updates ...tgbotapi.Update) {
	t.Helper()
	ch := make(chan tgbotapi.Update, len(updates))
	for _, u := range updates {
		ch <- u
	}
	close(ch)
	h.bot.handleUpdates(context.Background(), ch)
}

func (h *harness) expectLast(t *testing.T, substr string) {
	t.Helper()
	require.Contains(t, h.sender.last().Text, substr)
}

func TestMessageWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.say("привет")
	h.expectLast(t, "/start")
}

func TestProfileForm(t *testing.T) {
	h := newHarness(t)

	h.command("start")
	h.expectLast(t, "Укажите ваш пол")

	steps := []struct {
		input string
		want  string
	}{
		{"Кто-то", "Выберите пол"},
		{"Мужской", "возраст"},
		{"12", "Укажите возраст от 16 до 120 лет"},
		{"30", "рост"},
		{"abc", "Укажите рост от 120 до 250 см"},
		{"180", "вес"},
		{"80,5", "цель"},
		{"Поддержание формы", "Дневник питания"},
	}
	for _, s := range steps {
		h.say(s.input)
		h.expectLast(t, s.want)
	}

	p := h.repo.Profile(context.Background(), h.owner)
	require.NotNil(t, p, "profile was not saved")
	assert.Equal(t, models.UserProfile{Gender: models.GenderMale, Age: 30, Height: 180, Weight: 80.5, Goal: models.GoalMaintenance}, *p)
}

func TestHomeRequiresProfile(t *testing.T) {
	h := newHarness(t)
	h.command("start")
	h.command("summary")
	h.expectLast(t, "Сначала заполните профиль")
}

func TestAddFoodWithoutPhoto(t *testing.T) {
	h := newHarness(t)
	h.withProfile(t)

	h.command("start")
	h.expectLast(t, "Дневник питания")

	h.say("Добавить приём пищи")
	h.expectLast(t, "Выберите тип")
	h.say("Полдник")
	h.expectLast(t, "Пожалуйста, выберите тип")
	h.say("Обед")
	h.say("")
	h.expectLast(t, "Пожалуйста, введите название")
	h.say("Борщ")
	h.say(btnSkip)
	h.expectLast(t, "Пришлите фото")

	n := h.sender.count()
	h.say(btnSkip)
	sent := h.sender.sentSince(n)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "Добавлено")
	assert.Contains(t, sent[1], "Борщ")

	entries := h.repo.Entries(context.Background(), h.owner, h.repo.Today())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.MealLunch, e.MealType)
	assert.Equal(t, "Борщ", e.Name)
	assert.Empty(t, e.Description)
	assert.Nil(t, e.Nutrients)
}

// photoServer serves a 1200x800 png as the Telegram file download.
func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1200, 800))
	for x := 0; x < 1200; x++ {
		img.Set(x, x%800, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAddFoodWithPhoto(t *testing.T) {
	srv := photoServer(t)

	h := newHarness(t)
	h.withProfile(t)
	h.sender.fileURL = srv.URL + "/photo.png"
	h.analyzer.result = &models.AnalysisResult{
		Name: "Салат", Calories: 350, Protein: 12, Fat: 20, Carbs: 30, Description: "Овощной салат",
	}

	h.command("start")
	h.say("Добавить приём пищи")
	h.say("Ужин")
	h.say("Салат")
	h.say(btnSkip)
	h.photo()

	require.Len(t, h.analyzer.images, 1)
	assert.False(t, strings.HasPrefix(h.analyzer.images[0], "data:"), "analysis payload kept the data URL prefix")

	entries := h.repo.Entries(context.Background(), h.owner, h.repo.Today())
	require.Len(t, entries, 1)
	e := entries[0]
	require.NotNil(t, e.Nutrients)
	assert.Equal(t, 350.0, e.Nutrients.Calories)
	assert.Equal(t, "Овощной салат", e.Description)
	assert.True(t, strings.HasPrefix(e.Photo, "data:image/jpeg;base64,"), "photo was not compressed to JPEG: %.40s", e.Photo)
	h.expectLast(t, "350 ккал")
}

func TestAnalysisFailureStillSaves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	h := newHarness(t)
	h.withProfile(t)
	h.sender.fileURL = srv.URL
	h.analyzer.err = &apiclient.Error{Status: 500, Message: "Ошибка анализа фото"}

	h.command("start")
	h.say("Добавить приём пищи")
	h.say("Перекус")
	h.say("Яблоко")
	h.say("одно зелёное")

	n := h.sender.count()
	h.photo()
	assert.Contains(t, strings.Join(h.sender.sentSince(n), "\n"), "Ошибка анализа фото")

	entries := h.repo.Entries(context.Background(), h.owner, h.repo.Today())
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Nutrients)
	assert.Equal(t, "одно зелёное", entries[0].Description)
}

func TestBackFromAddFood(t *testing.T) {
	h := newHarness(t)
	h.withProfile(t)

	h.command("start")
	h.say("Добавить приём пищи")
	h.say("Завтрак")
	h.say(btnBack)
	h.expectLast(t, "Дневник питания")

	assert.Empty(t, h.repo.Entries(context.Background(), h.owner, h.repo.Today()), "back saved an entry")
}

func TestSummaryAndEndDay(t *testing.T) {
	h := newHarness(t)
	h.withProfile(t)
	ctx := context.Background()

	h.command("start")
	h.say(btnSummary)
	h.expectLast(t, "нет данных о приемах пищи")

	_, err := h.repo.AddEntry(ctx, h.owner, models.FoodEntry{MealType: models.MealBreakfast, Name: "Каша"})
	require.NoError(t, err)
	h.summarizer.text = "1. Рацион сбалансирован\n2. Белка мало\n3. Больше овощей\n4. Завтрак с яйцами"

	h.say(btnBack)
	h.say(btnSummary)
	h.expectLast(t, "<b>Общая оценка рациона</b>\nРацион сбалансирован")
	assert.Len(t, h.summarizer.meals, 1)

	h.say(btnEndDay)
	h.expectLast(t, "Очистить дневник")
	h.callback(cbEndDayNo)
	require.Len(t, h.repo.Entries(ctx, h.owner, h.repo.Today()), 1, "declining cleared the day")

	h.callback(cbEndDayYes)
	require.Empty(t, h.repo.Entries(ctx, h.owner, h.repo.Today()))
	h.expectLast(t, "Пока ничего не добавлено")
}

func TestSummaryError(t *testing.T) {
	h := newHarness(t)
	h.withProfile(t)
	h.summarizer.err = &apiclient.Error{Status: 502, Message: "Ошибка получения итогов дня"}

	_, err := h.repo.AddEntry(context.Background(), h.owner, models.FoodEntry{MealType: models.MealLunch, Name: "Суп"})
	require.NoError(t, err)
	h.command("start")
	h.command("summary")
	h.expectLast(t, "Ошибка получения итогов дня")
}

func TestFormatSummary(t *testing.T) {
	got := formatSummary("Вступление <ok>\n1) Хорошо\n  2. Средне\n5. Лишнее")
	for _, want := range []string{
		"<b>Анализ вашего питания</b>",
		"Вступление &lt;ok&gt;",
		"<b>Общая оценка рациона</b>\nХорошо",
		"<b>Анализ БЖУ и калорийности</b>\nСредне",
		"5. Лишнее",
	} {
		assert.Contains(t, got, want)
	}
}

func TestTextGauge(t *testing.T) {
	tests := []struct {
		value  float64
		target int
		want   string
	}{
		{0, 2000, "🔴 Калории ▱▱▱▱▱▱▱▱▱▱ 0 / 2000 ккал (0%)"},
		{1000, 2000, "🟠 Калории ▰▰▰▰▰▱▱▱▱▱ 1000 / 2000 ккал (50%)"},
		{2500, 2000, "🟢 Калории ▰▰▰▰▰▰▰▰▰▰ 2500 / 2000 ккал (100%)"},
		{150.5, 0, "🔴 Калории ▱▱▱▱▱▱▱▱▱▱ 150.5 / 0 ккал (0%)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, textGauge("Калории", tt.value, tt.target, "ккал"), "textGauge(%v, %d)", tt.value, tt.target)
	}
}
