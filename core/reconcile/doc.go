// Package reconcile provides a provider-agnostic engine that makes one key in a
// remote key-value store match a desired state, safely, across backends.
//
// The engine is designed around optimistic concurrency:
//   - Every attempt reads fresh state, including the backend's concurrency token
//   - Writes and deletes are compare-and-swap against that token
//   - A token mismatch means another writer raced ahead, so the engine re-reads and retries
//   - No in-process lock is held; the backend is the sole arbiter of consistency
//
// # Architecture
//
// The reconcile system consists of four parts:
//
// 1. Validation: Validate rejects blank keys and Present states without a value
// before any network I/O.
//
// 2. Backend: Provider-specific implementations (Consul, etcd, S3, SQL, CloudFront KVS,
// in-memory) of Read, Write and Remove. Backends translate "not found" into a normal
// ObservedState and token mismatches into a false result.
//
// 3. Plan: Decide computes the minimal operation (none, create, update, delete) from the
// desired and observed state. Identical values never produce a write.
//
// 4. Engine: Runs Read -> Decide -> Apply with bounded retries and reports an Outcome.
//
// # Errors
//
// Every failure is an *Error with a FailureKind. Callers match kinds with KindOf or
// errors.Is against the Err* sentinels:
//
//	outcome, err := engine.Reconcile(ctx, backend, desired)
//	if errors.Is(err, reconcile.ErrConcurrentModification) {
//	    // another writer kept winning
//	}
//
// # Usage Example
//
//	engine := reconcile.NewEngine(reconcile.Options{MaxAttempts: 3}, logger)
//	outcome, err := engine.Reconcile(ctx, backend, reconcile.DesiredState{
//	    Key:      "service/web/replicas",
//	    Presence: reconcile.Present,
//	    Value:    "3",
//	})
package reconcile
