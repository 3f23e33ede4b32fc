package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocal/internal/models"
)

func TestUpdateQueueRunsEachKeyInOrder(t *testing.T) {
	var wg sync.WaitGroup
	q := newUpdateQueue(&wg)

	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []int
	)
	q.push(1, func() { <-release })
	for i := 0; i < 50; i++ {
		q.push(1, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	other := make(chan struct{})
	q.push(2, func() { close(other) })
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("a busy user held up another user's updates")
	}

	close(release)
	wg.Wait()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Empty(t, q.pending)
}

func TestSenderOf(t *testing.T) {
	assert.Equal(t, testUser, senderOf(textUpdate("hi")))
	assert.Equal(t, int64(9), senderOf(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 9}}}))
	assert.Zero(t, senderOf(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}))
	assert.Zero(t, senderOf(tgbotapi.Update{}))
}

func TestPolledProfileAnswersKeepOrder(t *testing.T) {
	h := newHarness(t)

	h.poll(t,
		commandUpdate("start"),
		textUpdate("Мужской"),
		textUpdate("30"),
		textUpdate("180"),
		textUpdate("80"),
		textUpdate("Поддержание формы"),
	)
	require.NoError(t, h.bot.Stop(context.Background()))

	p := h.repo.Profile(context.Background(), h.owner)
	require.NotNil(t, p, "profile was not saved")
	assert.Equal(t, models.UserProfile{Gender: models.GenderMale, Age: 30, Height: 180, Weight: 80, Goal: models.GoalMaintenance}, *p)
	h.expectLast(t, "Дневник питания")
}

func TestPolledBackIsNotHeldUpByAnalysis(t *testing.T) {
	srv := photoServer(t)

	h := newHarness(t)
	h.withProfile(t)
	h.sender.fileURL = srv.URL + "/photo.png"
	h.analyzer.block = make(chan struct{})
	h.analyzer.result = &models.AnalysisResult{Name: "Салат", Calories: 350}

	h.command("start")
	h.say("Добавить приём пищи")
	h.say("Ужин")
	h.say("Салат")
	h.say(btnSkip)

	h.poll(t, photoUpdate(), textUpdate(btnBack))

	require.Eventually(t, func() bool {
		return strings.Contains(h.sender.last().Text, "Дневник питания")
	}, 2*time.Second, 10*time.Millisecond, "back was not handled while the analysis was running")

	close(h.analyzer.block)
	require.NoError(t, h.bot.Stop(context.Background()))

	assert.Equal(t, 1, h.analyzer.calls())
	assert.Empty(t, h.repo.Entries(context.Background(), h.owner, h.repo.Today()), "cancelled analysis saved an entry")
}
