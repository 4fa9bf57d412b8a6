package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/noirthread/storefront-api/internal/repositories"
)

type counterState struct {
	current  int64
	step     int64
	maxValue *int64
}

// CounterRepository provides process-local sequence numbers.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]*counterState
}

// NewCounterRepository constructs an empty in-memory counter repository.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{counters: make(map[string]*counterState)}
}

// Next increments the counter and returns the next value, creating the
// counter on first use.
func (r *CounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.counters[id]
	if !ok {
		state = &counterState{step: 1}
		r.counters[id] = state
	}

	increment := step
	if increment <= 0 {
		increment = state.step
		if increment <= 0 {
			increment = 1
		}
	}

	next := state.current + increment
	if state.maxValue != nil && next > *state.maxValue {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *state.maxValue), nil)
	}

	state.current = next
	state.step = increment
	return next, nil
}

// Configure updates step, max value, or current value for the counter.
func (r *CounterRepository) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.counters[id]
	if !ok {
		state = &counterState{step: 1}
		r.counters[id] = state
	}
	if cfg.Step > 0 {
		state.step = cfg.Step
	}
	if cfg.MaxValue != nil {
		max := *cfg.MaxValue
		state.maxValue = &max
	}
	if cfg.InitialValue != nil {
		state.current = *cfg.InitialValue
	}
	return nil
}

// Reset returns the counter to zero.
func (r *CounterRepository) Reset(_ context.Context, counterID string) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.counters[id]; ok {
		state.current = 0
	}
	return nil
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)
