package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/noirthread/storefront-api/internal/platform/textutil"
	"github.com/noirthread/storefront-api/internal/repositories"
)

var (
	// ErrCounterInvalidInput indicates the caller supplied invalid counter parameters.
	ErrCounterInvalidInput = errors.New("counter: invalid input")
	// ErrCounterExhausted indicates the counter cannot increment further due to max bounds.
	ErrCounterExhausted = errors.New("counter: exhausted")
)

// CounterServiceDeps bundles collaborators required to construct a counter service.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
}

type counterService struct {
	repo repositories.CounterRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCounterService constructs the order number minting service. The
// repository increment is already transactional; the per-key mutex keeps
// concurrent mints for the same product strictly ordered within the process
// while distinct products proceed in parallel.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}
	return &counterService{
		repo:  deps.Repository,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// MintOrderNumber returns the next order number for the product, formatted
// as KEY-0001. Counter failures abort loudly; a number is never reused.
func (s *counterService) MintOrderNumber(ctx context.Context, productName string) (string, error) {
	key := textutil.NormalizeKey(productName)
	if key == "" {
		return "", fmt.Errorf("%w: product name %q normalises to empty key", ErrCounterInvalidInput, productName)
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	value, err := s.repo.Next(ctx, key, 1)
	if err != nil {
		return "", mapCounterError(err)
	}
	return fmt.Sprintf("%s-%04d", key, value), nil
}

// ResetCounter returns the product's sequence to zero. The next mint starts
// over at 0001, so existing order numbers must be purged first.
func (s *counterService) ResetCounter(ctx context.Context, productName string) error {
	key := textutil.NormalizeKey(productName)
	if key == "" {
		return fmt.Errorf("%w: product name %q normalises to empty key", ErrCounterInvalidInput, productName)
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.Reset(ctx, key); err != nil {
		return mapCounterError(err)
	}
	return nil
}

func (s *counterService) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func mapCounterError(err error) error {
	var counterErr *repositories.CounterError
	if errors.As(err, &counterErr) {
		switch counterErr.Code {
		case repositories.CounterErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Message)
		case repositories.CounterErrorExhausted:
			return fmt.Errorf("%w: %s", ErrCounterExhausted, counterErr.Message)
		}
	}
	return err
}
