// Package kv is the application feature for key reconciliation.
//
// Service turns a Request (provider, target, desired state, timeout) into a Result by
// validating input, resolving the provider from the registry and running the reconcile
// engine. Apply does the same for every entry of a TOML Manifest with bounded
// concurrency. Handler exposes both over HTTP and Feature plugs it into the loader.
//
// # Routes
//
//	POST /api/kv/reconcile   JSON Request -> Result
//	POST /api/kv/apply       TOML Manifest -> BatchResult
//	GET  /api/kv/providers   registered providers
package kv
