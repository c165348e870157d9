package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID = errors.New("invalid ULID")

	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID generates a new ULID string. IDs minted by one process sort in
// creation order, which the post feed relies on for its tie breaker.
func NewULID() (string, error) {
	return newULIDAt(time.Now())
}

// MustNewULID is NewULID for call sites that cannot surface an error.
func MustNewULID() string {
	id, err := NewULID()
	if err != nil {
		panic(fmt.Sprintf("mint ulid: %v", err))
	}
	return id
}

func newULIDAt(ts time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func IsULID(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// ValidateULID reports ErrInvalidULID for anything that is not a 26-char
// Crockford base32 identifier.
func ValidateULID(value string) error {
	if !IsULID(value) {
		return fmt.Errorf("%w: %q", ErrInvalidULID, value)
	}
	return nil
}

// Normalize upper-cases a ULID so lookups match the stored form.
func Normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// Time extracts the millisecond timestamp embedded in a ULID.
func Time(value string) (time.Time, error) {
	id, err := ulid.ParseStrict(Normalize(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidULID, err)
	}
	return ulid.Time(id.Time()), nil
}
