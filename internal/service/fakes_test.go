package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// fakeLLM returns queued responses in order; after the queue drains it keeps
// returning the last one. A nil queue makes every call fail.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	err       error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ GenerateOptions) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no response configured")
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &Completion{Text: f.responses[idx], TotalTokens: 100}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEmbedClient returns a fixed-dimension vector derived from text length.
// It records how much time each call had left on its context.
type fakeEmbedClient struct {
	mu      sync.Mutex
	calls   int
	budgets []time.Duration
	err     error
}

func (f *fakeEmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	if d, ok := ctx.Deadline(); ok {
		f.budgets = append(f.budgets, time.Until(d))
	}
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedClient) Dimension() int { return 3 }

// fakeIndex serves a canned result set and records upserts plus the time
// each search had left on its context.
type fakeIndex struct {
	mu       sync.Mutex
	results  []model.ScoredDoc
	upserted []IndexRecord
	searches int
	budgets  []time.Duration
	err      error
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, _ []float32, topK int) ([]model.ScoredDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if d, ok := ctx.Deadline(); ok {
		f.budgets = append(f.budgets, time.Until(d))
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeIndex) Upsert(_ context.Context, records []IndexRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeIndex) DeleteAll(context.Context, string) error { return f.err }

func (f *fakeIndex) Stats(context.Context) (IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return IndexStats{Count: len(f.upserted)}, f.err
}
