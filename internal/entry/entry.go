package entry

import (
	"time"
)

// Kind distinguishes the payload shapes a store key can hold
type Kind int

const (
	// KindString is a plain byte payload (GET/SET/INCR)
	KindString Kind = iota

	// KindList is an ordered list of values (RPUSH/LRANGE)
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Entry is a single key's payload together with its expiry metadata.
// Entries are not safe for concurrent use; the owning store serializes access.
type Entry struct {
	Kind Kind

	// Value holds the payload of a KindString entry
	Value []byte

	// List holds the items of a KindList entry, oldest first
	List []string

	// ExpiresAt indicates when this entry expires (nil means no expiration)
	ExpiresAt *time.Time

	// CreatedAt is when this entry was last written
	CreatedAt time.Time
}

// New creates a string entry. A positive ttl sets an expiry relative to now.
func New(value []byte, ttl time.Duration, now time.Time) *Entry {
	e := &Entry{
		Kind:      KindString,
		Value:     append([]byte(nil), value...),
		CreatedAt: now,
	}

	if ttl > 0 {
		expiry := now.Add(ttl)
		e.ExpiresAt = &expiry
	}

	return e
}

// NewList creates an empty list entry without expiration
func NewList(now time.Time) *Entry {
	return &Entry{
		Kind:      KindList,
		CreatedAt: now,
	}
}

// IsExpired returns true if the entry has expired at the given instant
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}
	return !now.Before(*e.ExpiresAt)
}

// TTL returns the time remaining until expiration.
// Returns 0 if the entry has no expiration or has already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}

	remaining := e.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// HasExpiry returns true if the entry has an expiration time set
func (e *Entry) HasExpiry() bool {
	return e.ExpiresAt != nil
}

// Append adds an item to the end of a list entry
func (e *Entry) Append(item string) {
	e.List = append(e.List, item)
}

// Items returns a copy of the list items
func (e *Entry) Items() []string {
	out := make([]string, len(e.List))
	copy(out, e.List)
	return out
}

// Bytes returns a copy of the string payload
func (e *Entry) Bytes() []byte {
	return append([]byte(nil), e.Value...)
}

// String returns a string representation of the entry (for debugging)
func (e *Entry) String() string {
	status := "Entry{" + e.Kind.String() + ", "
	if e.ExpiresAt == nil {
		status += "no-expiry}"
	} else {
		status += "expires: " + e.ExpiresAt.Format(time.RFC3339) + "}"
	}
	return status
}
