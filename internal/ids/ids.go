// Package ids provides the opaque 128-bit identifiers shared across
// every component (SessionId, AgentId, TaskId, ProposalId,
// ExecutionId) and the clock seam used to keep timestamp generation
// testable.
package ids

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque, value-comparable, stringifiable identifier backed
// by a UUID. SessionId, AgentId, TaskId, ProposalId and ExecutionId
// are all this same underlying shape per spec.md section 3.
type ID struct {
	u uuid.UUID
}

// New generates a fresh random ID.
func New() ID {
	return ID{u: uuid.New()}
}

// Nil is the zero-value ID, distinguishable from any generated ID.
var Nil = ID{}

// IsNil reports whether this ID was never assigned a value.
func (i ID) IsNil() bool { return i.u == uuid.Nil }

// String returns the canonical textual UUID form.
func (i ID) String() string { return i.u.String() }

func (i ID) MarshalText() ([]byte, error) { return []byte(i.u.String()), nil }

func (i *ID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	i.u = u
	return nil
}

// Parse builds an ID from its canonical textual form.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID{u: u}, nil
}

type SessionId = ID
type AgentId = ID
type TaskId = ID
type ProposalId = ID
type ExecutionId = ID

// Clock abstracts "now" so tests can control time without sleeping.
// Components take a Clock rather than calling time.Now() directly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a test Clock that always returns the same instant
// unless advanced.
type FixedClock struct {
	t time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t.UTC()} }

func (c *FixedClock) Now() time.Time { return c.t }

func (c *FixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
