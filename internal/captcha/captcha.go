// Package captcha issues short-lived image challenges. Codes live in an
// external code store under a generated id; the image itself is never
// persisted.
package captcha

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hryhorenko/commentsapp/internal/cache"
)

// Lookalike characters (0/O, 1/I) are excluded.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	CodeLength = 5
	CodeTTL    = 5 * time.Minute
)

type Service struct {
	Store cache.CodeStore
	TTL   time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// New builds a Service around an explicitly provided random source, so no
// process-global generator state is shared.
func New(store cache.CodeStore, rnd *rand.Rand) *Service {
	return &Service{Store: store, TTL: CodeTTL, rnd: rnd}
}

type Challenge struct {
	ID    string
	Image []byte
}

func (s *Service) code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// Generate stores a fresh code under a new id and returns the id with the
// rendered PNG.
func (s *Service) Generate(ctx context.Context) (*Challenge, error) {
	code := s.code()
	id := uuid.NewString()

	if err := s.Store.Set(ctx, id, code, s.TTL); err != nil {
		return nil, err
	}

	img, err := renderPNG(code)
	if err != nil {
		return nil, err
	}

	return &Challenge{ID: id, Image: img}, nil
}

// Validate compares the user's input against the stored code,
// case-insensitively. An expired or unknown id simply fails validation.
func (s *Service) Validate(ctx context.Context, id, input string) (bool, error) {
	code, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(code, input), nil
}
