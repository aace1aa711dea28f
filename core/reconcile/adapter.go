package reconcile

import "context"

// Backend is the capability set every key-value provider implements.
// Implementations own their provider's wire semantics; the engine never
// inspects which provider it is talking to.
type Backend interface {
	// Read returns the current state of key. A missing key is a normal
	// ObservedState with Exists=false, not an error.
	Read(ctx context.Context, key string) (ObservedState, error)

	// Write stores value under key only if the backend's current token equals
	// expected. When expected is CreateOnly the key must not exist yet.
	// A token mismatch returns (false, nil).
	Write(ctx context.Context, key, value string, expected Token) (bool, error)

	// Remove deletes key only if the backend's current token equals expected.
	// A token mismatch returns (false, nil).
	Remove(ctx context.Context, key string, expected Token) (bool, error)
}
