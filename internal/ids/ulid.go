// Package ids generates sortable identifiers for pipeline runs and captures.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULIDFromTimestamp returns a monotonic ULID for the given time.
func NewULIDFromTimestamp(t time.Time) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// New returns a ULID for the current time. If the entropy source fails the
// random component is left zero.
func New() string {
	now := time.Now()
	id, err := NewULIDFromTimestamp(now)
	if err != nil {
		var u ulid.ULID
		_ = u.SetTime(ulid.Timestamp(now))
		return u.String()
	}
	return id
}
