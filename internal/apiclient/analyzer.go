package apiclient

import (
	"context"
	"errors"
	"sync"

	"photocal/internal/models"
)

// ErrSuperseded is returned by an analysis that was replaced by a newer one
// for the same owner, or cancelled outright.
var ErrSuperseded = errors.New("apiclient: analysis superseded")

// FoodAnalyzer is implemented by Client.
type FoodAnalyzer interface {
	AnalyzeFood(ctx context.Context, imageBase64, description string) (*models.AnalysisResult, error)
}

type flight struct {
	id     uint64
	cancel context.CancelFunc
}

// Analyzer allows one analysis in flight per owner. Starting a new one
// cancels the previous request, whose caller then receives ErrSuperseded
// regardless of how the request itself ended.
type Analyzer struct {
	client FoodAnalyzer

	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

func NewAnalyzer(client FoodAnalyzer) *Analyzer {
	return &Analyzer{
		client:   client,
		inflight: make(map[string]flight),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, owner, imageBase64, description string) (*models.AnalysisResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.seq++
	id := a.seq
	if prev, ok := a.inflight[owner]; ok {
		prev.cancel()
	}
	a.inflight[owner] = flight{id: id, cancel: cancel}
	a.mu.Unlock()

	res, err := a.client.AnalyzeFood(ctx, imageBase64, description)

	a.mu.Lock()
	cur, ok := a.inflight[owner]
	current := ok && cur.id == id
	if current {
		delete(a.inflight, owner)
	}
	a.mu.Unlock()

	if !current {
		return nil, ErrSuperseded
	}
	return res, err
}

// Cancel aborts the owner's pending analysis and reports whether there was
// one.
func (a *Analyzer) Cancel(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, ok := a.inflight[owner]
	if ok {
		f.cancel()
		delete(a.inflight, owner)
	}
	return ok
}

// Pending reports whether owner has an analysis in flight.
func (a *Analyzer) Pending(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inflight[owner]
	return ok
}
