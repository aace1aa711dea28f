package reconcile

import (
	"fmt"
	"strings"
)

// Presence is the desired existence of a key.
type Presence string

const (
	// Present means the key must exist with the desired value.
	Present Presence = "present"
	// Absent means the key must not exist.
	Absent Presence = "absent"
)

// ParsePresence converts a state string into a Presence.
// An empty string defaults to Present.
func ParsePresence(s string) (Presence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Present):
		return Present, nil
	case string(Absent):
		return Absent, nil
	default:
		return "", newError(InvalidState, "", fmt.Errorf("state must be %q or %q, got %q", Present, Absent, s))
	}
}

// Token is an opaque optimistic-concurrency token issued by a backend
// (Consul ModifyIndex, etcd ModRevision, object ETag, row revision).
type Token string

// CreateOnly is the expected token for writes that must only succeed when the
// key does not exist yet.
const CreateOnly Token = ""

// DesiredState describes what a single key should look like after reconciliation.
type DesiredState struct {
	// Key is the backend key to reconcile.
	Key string `json:"key"`

	// Presence selects between set (Present) and delete (Absent).
	Presence Presence `json:"state"`

	// Value is the desired value. Required when Presence is Present.
	Value string `json:"value,omitempty"`
}

// ObservedState is the current state of a key as read from a backend.
// It is produced fresh for every attempt and must not be cached.
type ObservedState struct {
	// Exists reports whether the key is currently stored.
	Exists bool

	// Value is the stored value. Empty when Exists is false.
	Value string

	// Token is the concurrency token of the stored value. Empty when Exists is false.
	Token Token
}

// Missing returns the observed state of a key that does not exist.
func Missing() ObservedState {
	return ObservedState{}
}

// Found returns the observed state of an existing key.
func Found(value string, token Token) ObservedState {
	return ObservedState{Exists: true, Value: value, Token: token}
}

// Action is the operation chosen by the engine for a key.
type Action string

const (
	// ActionNone means the observed state already matches.
	ActionNone Action = "none"
	// ActionCreate writes a key that does not exist yet.
	ActionCreate Action = "create"
	// ActionUpdate overwrites a key holding a different value.
	ActionUpdate Action = "update"
	// ActionDelete removes an existing key.
	ActionDelete Action = "delete"
)

// Outcome is the result of one reconciliation call.
type Outcome struct {
	// Success is true when the backend now matches the desired state
	// (or would, in dry-run mode).
	Success bool `json:"success"`

	// Changed is true when the backend state was modified (or would be, in dry-run mode).
	Changed bool `json:"changed"`

	// Action is the last operation decided by the engine.
	Action Action `json:"action"`

	// Attempts counts Read/Decide/Apply rounds performed.
	Attempts int `json:"attempts"`

	// Failure is set when Success is false.
	Failure FailureKind `json:"failure,omitempty"`
}

// Options controls engine behaviour.
type Options struct {
	// MaxAttempts bounds the read-decide-apply rounds when a concurrent writer
	// invalidates the observed token. Values below 1 use DefaultMaxAttempts.
	MaxAttempts int

	// DryRun reads and decides but never applies.
	DryRun bool
}

// DefaultMaxAttempts is the attempt bound used when Options.MaxAttempts is unset.
const DefaultMaxAttempts = 3
