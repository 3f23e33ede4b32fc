package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// updateQueue runs jobs one at a time per key, in the order they were
// pushed. Jobs of different keys run concurrently. A key's goroutine exits
// once its queue is empty.
type updateQueue struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      *sync.WaitGroup
}

func newUpdateQueue(wg *sync.WaitGroup) *updateQueue {
	return &updateQueue{pending: make(map[int64][]func()), wg: wg}
}

func (q *updateQueue) push(key int64, job func()) {
	q.mu.Lock()
	jobs, running := q.pending[key]
	q.pending[key] = append(jobs, job)
	if !running {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(key)
	}
}

func (q *updateQueue) drain(key int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// senderOf returns the Telegram user an update came from, or 0.
func senderOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}
