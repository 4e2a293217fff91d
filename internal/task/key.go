package task

import (
	"fmt"
	"strings"
	"time"
)

const (
	keySeparator = ":"
	emptySubject = "-"

	// bucketLayout truncates the time bucket to minute precision; the bucket
	// interval itself is decided by the caller via Truncate.
	bucketLayout = "200601021504"
)

// Key derives the deterministic dedup identity of a task. Two enqueues with
// the same type, subject and bucket map to the same pending-or-active task.
// A zero bucket omits the time component entirely.
func Key(taskType Type, subject Subject, bucket time.Time) string {
	parts := []string{string(taskType), subject.String()}
	if !bucket.IsZero() {
		parts = append(parts, bucket.UTC().Format(bucketLayout))
	}
	return strings.Join(parts, keySeparator)
}

// String returns the canonical subject form used in dedup keys and logs.
func (s Subject) String() string {
	if s.IsZero() {
		return emptySubject
	}

	var parts []string
	if s.Round != 0 {
		parts = append(parts, fmt.Sprintf("round=%d", s.Round))
	}
	if s.Entry != 0 {
		parts = append(parts, fmt.Sprintf("entry=%d", s.Entry))
	}
	if s.Tournament != 0 {
		parts = append(parts, fmt.Sprintf("tournament=%d", s.Tournament))
	}
	return strings.Join(parts, "/")
}
