package eviction

import (
	"fmt"
	"strings"
)

/*
Policy decides which key leaves a full shard. The shard owns the locking;
implementations are not safe for concurrent use on their own.
*/
type Policy interface {

	// OnGet records a read of a tracked key.
	OnGet(string)

	// OnPut starts tracking a key. Re-putting a tracked key counts as a use.
	OnPut(string)

	// Remove stops tracking a key that was removed or expired.
	Remove(string)

	// Evict picks a victim, stops tracking it and returns it.
	// It returns "" when nothing is tracked.
	Evict() string

	// Reset forgets every key.
	Reset()
}

// PolicyType is the configuration name of an eviction strategy.
type PolicyType string

const (
	// LRU evicts the key that has gone unread the longest.
	LRU PolicyType = "LRU"

	// LFU evicts the least read key; ties go to the oldest.
	LFU PolicyType = "LFU"

	// FIFO evicts the oldest inserted key regardless of reads.
	FIFO PolicyType = "FIFO"
)

// ParsePolicyType accepts a case-insensitive policy name.
func ParsePolicyType(s string) (PolicyType, error) {
	switch t := PolicyType(strings.ToUpper(strings.TrimSpace(s))); t {
	case LRU, LFU, FIFO:
		return t, nil
	case "":
		return LRU, nil
	default:
		return "", fmt.Errorf("eviction: unknown policy %q", s)
	}
}

// NewEvictionPolicy creates a fresh policy instance of type t.
func NewEvictionPolicy(t PolicyType) Policy {
	switch t {
	case LRU:
		return newLRU()
	case LFU:
		return newLFU()
	case FIFO:
		return newFIFO()
	default:
		panic("unknown eviction policy")
	}
}
