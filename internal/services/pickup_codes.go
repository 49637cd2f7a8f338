package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"locker-reservation-service/internal/domain"
	"strings"
)

const (
	PickupCodeLength = 6
	// Letters and digits without the look-alikes 0/O and 1/I.
	PickupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type codeChecker interface {
	PickupCodeInUse(ctx context.Context, code string) (bool, error)
}

// CodeGenerator issues pickup codes that are unique among stored reservations.
type CodeGenerator struct {
	attempts int
	rand     io.Reader
}

func NewCodeGenerator(attempts int) *CodeGenerator {
	if attempts <= 0 {
		attempts = 10
	}
	return &CodeGenerator{attempts: attempts, rand: rand.Reader}
}

// Generate draws codes until one is not held by any reservation.
func (g *CodeGenerator) Generate(ctx context.Context, existing codeChecker) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := randomString(g.rand, PickupCodeAlphabet, PickupCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate pickup code: %w", err)
		}

		inUse, err := existing.PickupCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("generate pickup code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}

	return "", fmt.Errorf("generate pickup code: no free code after %d attempts: %w", g.attempts, domain.ErrConflict)
}

// Normalize trims and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateFormat reports whether code, once normalized, could have been issued.
func ValidateFormat(code string) bool {
	code = Normalize(code)
	if len(code) != PickupCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(PickupCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// randomString draws n symbols uniformly from alphabet. Bytes that would bias
// the distribution are rejected.
func randomString(r io.Reader, alphabet string, n int) (string, error) {
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
