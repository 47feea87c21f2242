package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// CodeLength is the length of generated short codes.
	CodeLength    = 6
	MinCodeLength = 4
	MaxCodeLength = 10

	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	defaultMaxAllocationAttempts = 10
)

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// DefaultReservedWords are codes that would shadow application routes.
var DefaultReservedWords = []string{
	"api", "auth", "login", "logout", "signup", "admin", "dashboard",
	"static", "assets", "docs", "about", "help", "healthz", "readyz",
}

// ValidationMode tells Validate where a code came from.
type ValidationMode int

const (
	// ModeRequested is a code chosen by the caller.
	ModeRequested ValidationMode = iota
	// ModeGenerated is a candidate from GenerateCandidate.
	ModeGenerated
)

// ReservedWords is the immutable reserved-code set, built once at start.
type ReservedWords struct {
	words map[string]struct{}
}

// NewReservedWords merges the defaults with configured extras.
func NewReservedWords(c *conf.Shortener) *ReservedWords {
	var extra []string
	if c != nil {
		extra = c.ReservedWords
	}
	r := &ReservedWords{words: make(map[string]struct{}, len(DefaultReservedWords)+len(extra))}
	for _, w := range append(append([]string(nil), DefaultReservedWords...), extra...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			r.words[w] = struct{}{}
		}
	}
	return r
}

// Contains is case-insensitive.
func (r *ReservedWords) Contains(code string) bool {
	_, ok := r.words[strings.ToLower(code)]
	return ok
}

// Allocator hands out short codes that are free in the key-value store.
type Allocator struct {
	mappings    domain.MappingStore
	reserved    *ReservedWords
	maxAttempts int
	generate    func() (string, error)
	log         *log.Helper
}

// NewAllocator .
func NewAllocator(mappings domain.MappingStore, reserved *ReservedWords, c *conf.Shortener, logger log.Logger) *Allocator {
	attempts := defaultMaxAllocationAttempts
	if c != nil && c.MaxAllocationAttempts > 0 {
		attempts = c.MaxAllocationAttempts
	}
	a := &Allocator{
		mappings:    mappings,
		reserved:    reserved,
		maxAttempts: attempts,
		log:         log.NewHelper(logger),
	}
	a.generate = a.GenerateCandidate
	return a
}

// GenerateCandidate returns a uniformly random 6 character code over [0-9A-Za-z].
func (a *Allocator) GenerateCandidate() (string, error) {
	return gonanoid.Generate(codeAlphabet, CodeLength)
}

// Validate checks length, alphabet and the reserved set.
func (a *Allocator) Validate(code string, mode ValidationMode) error {
	minLen, maxLen := MinCodeLength, MaxCodeLength
	if mode == ModeGenerated {
		minLen, maxLen = CodeLength, CodeLength
	}
	err := validation.Validate(code,
		validation.Required.Error("short code is required"),
		validation.Length(minLen, maxLen).Error(fmt.Sprintf("short code must be %d-%d characters", minLen, maxLen)),
		validation.Match(shortCodePattern).Error("short code must contain only letters and digits"),
		validation.By(a.notReserved),
	)
	if err != nil {
		return domain.ValidationError("short_code", "%s", err.Error())
	}
	return nil
}

func (a *Allocator) notReserved(value any) error {
	code, _ := value.(string)
	if a.reserved.Contains(code) {
		return fmt.Errorf("short code %q is reserved", code)
	}
	return nil
}

// Allocate validates and claims the requested code, or generates one.
// Requested codes that are occupied fail with ErrConflict; generated codes are
// retried with fresh candidates up to the configured number of attempts.
func (a *Allocator) Allocate(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		if err := a.Validate(requested, ModeRequested); err != nil {
			return "", err
		}
		taken, err := a.mappings.Exists(ctx, requested)
		if err != nil {
			return "", domain.StorageError("check short code", err)
		}
		if taken {
			return "", domain.ErrConflict
		}
		return requested, nil
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		if err := a.Validate(candidate, ModeGenerated); err != nil {
			a.log.WithContext(ctx).Debugf("discarding candidate %q: %v", candidate, err)
			continue
		}

		taken, err := a.mappings.Exists(ctx, candidate)
		if err != nil {
			return "", domain.StorageError("check short code", err)
		}
		if !taken {
			return candidate, nil
		}
		a.log.WithContext(ctx).Infof("short code collision on attempt %d", attempt)
	}

	return "", domain.ErrAllocationExhausted
}
