package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULIDFromTimestamp_Monotonic(t *testing.T) {
	now := time.Now()
	first, err := NewULIDFromTimestamp(now)
	if err != nil {
		t.Fatalf("NewULIDFromTimestamp() error = %v", err)
	}
	second, err := NewULIDFromTimestamp(now)
	if err != nil {
		t.Fatalf("NewULIDFromTimestamp() error = %v", err)
	}
	if second <= first {
		t.Errorf("expected %s > %s for the same millisecond", second, first)
	}
}

func TestNew_Parses(t *testing.T) {
	id := New()
	parsed, err := ulid.Parse(id)
	if err != nil {
		t.Fatalf("ulid.Parse(%q) error = %v", id, err)
	}
	if time.Since(ulid.Time(parsed.Time())) > time.Minute {
		t.Errorf("ULID time too old: %v", ulid.Time(parsed.Time()))
	}
}
