package services

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	contextutils "srcapp/internal/utils"

	"github.com/google/uuid"
)

// Operands are drawn from [captchaMin, captchaMax]
const (
	captchaMin = 1
	captchaMax = 10
)

// Outstanding challenges expire after captchaTTL; at most captchaMaxPending
// are kept at once.
const (
	captchaTTL        = 30 * time.Minute
	captchaMaxPending = 10000
)

// CaptchaChallenge is an addition question shown on the submission form
type CaptchaChallenge struct {
	A int
	B int
}

// Expected is the correct answer
func (c CaptchaChallenge) Expected() int {
	return c.A + c.B
}

// Question is the prompt rendered next to the answer field
func (c CaptchaChallenge) Question() string {
	return fmt.Sprintf("What is %d + %d?", c.A, c.B)
}

type pendingChallenge struct {
	expected int
	issuedAt time.Time
}

// CaptchaService issues and checks arithmetic challenges. Issued challenges
// are held in memory under a random nonce; the client only ever sees the
// nonce, and redeeming it removes the entry.
type CaptchaService struct {
	intN func(n int) int
	now  func() time.Time

	mu      sync.Mutex
	pending map[string]pendingChallenge
}

// NewCaptchaService creates a CaptchaService backed by math/rand/v2
func NewCaptchaService() *CaptchaService {
	return &CaptchaService{
		intN:    rand.IntN,
		now:     time.Now,
		pending: make(map[string]pendingChallenge),
	}
}

// NewChallenge returns two operands in [1, 10]
func (s *CaptchaService) NewChallenge() CaptchaChallenge {
	span := captchaMax - captchaMin + 1
	return CaptchaChallenge{
		A: captchaMin + s.intN(span),
		B: captchaMin + s.intN(span),
	}
}

// Issue creates a challenge and records its answer under a fresh nonce
func (s *CaptchaService) Issue() (CaptchaChallenge, string) {
	challenge := s.NewChallenge()
	nonce := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.pending[nonce] = pendingChallenge{expected: challenge.Expected(), issuedAt: s.now()}
	return challenge, nonce
}

// Redeem returns the expected answer for nonce and forgets it. 0 means the
// nonce is unknown, expired or already used.
func (s *CaptchaService) Redeem(nonce string) int {
	if nonce == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[nonce]
	if !ok {
		return 0
	}
	delete(s.pending, nonce)
	if s.now().Sub(entry.issuedAt) > captchaTTL {
		return 0
	}
	return entry.expected
}

// Pending reports how many challenges are outstanding
func (s *CaptchaService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// pruneLocked drops expired entries, then the oldest ones while over capacity
func (s *CaptchaService) pruneLocked() {
	now := s.now()
	for nonce, entry := range s.pending {
		if now.Sub(entry.issuedAt) > captchaTTL {
			delete(s.pending, nonce)
		}
	}
	for len(s.pending) >= captchaMaxPending {
		var oldest string
		var oldestAt time.Time
		for nonce, entry := range s.pending {
			if oldest == "" || entry.issuedAt.Before(oldestAt) {
				oldest, oldestAt = nonce, entry.issuedAt
			}
		}
		delete(s.pending, oldest)
	}
}

// Verify compares an answer with the expected sum. expected <= 0 means no
// challenge was issued (or it was already used) and always fails.
func (s *CaptchaService) Verify(expected int, answer string) error {
	if expected <= 0 {
		return contextutils.NewAppError(contextutils.ErrorCodeCaptchaFailed, contextutils.SeverityInfo,
			"The security question expired, please answer the new one", "")
	}
	got, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || got != expected {
		return contextutils.NewAppError(contextutils.ErrorCodeCaptchaFailed, contextutils.SeverityInfo,
			"Incorrect answer to the security question", "")
	}
	return nil
}
