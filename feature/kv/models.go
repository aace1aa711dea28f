package kv

import (
	"time"

	"kv-reconciler/core/reconcile"
)

// Request is one reconciliation as callers express it.
type Request struct {
	Provider string `json:"provider"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	State    string `json:"state"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	// Timeout bounds the whole call, in seconds.
	Timeout int `json:"timeout"`
	// Delay is accepted as an alias for Timeout.
	Delay       int  `json:"delay"`
	MaxAttempts int  `json:"max_attempts"`
	DryRun      bool `json:"dry_run"`
}

func (r Request) timeout(fallback time.Duration) time.Duration {
	switch {
	case r.Timeout > 0:
		return time.Duration(r.Timeout) * time.Second
	case r.Delay > 0:
		return time.Duration(r.Delay) * time.Second
	default:
		return fallback
	}
}

// Result is the structured report of one reconciliation.
type Result struct {
	Changed  bool                  `json:"changed"`
	Success  bool                  `json:"success"`
	State    string                `json:"state"`
	Provider string                `json:"provider"`
	Key      string                `json:"key"`
	Value    string                `json:"value"`
	Host     string                `json:"host"`
	Port     int                   `json:"port"`
	Elapsed  float64               `json:"elapsed"`
	Action   reconcile.Action      `json:"action"`
	Attempts int                   `json:"attempts"`
	Delay    int                   `json:"delay,omitempty"`
	DryRun   bool                  `json:"dry_run,omitempty"`
	Failure  reconcile.FailureKind `json:"failure,omitempty"`
	Msg      string                `json:"msg,omitempty"`

	err error
}

// Err returns the typed error behind a failed result, or nil.
func (r Result) Err() error {
	return r.err
}

// Summary counts the results of a batch.
type Summary struct {
	Total     int `json:"total"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// BatchResult is the report of a manifest apply. Results keep manifest order.
type BatchResult struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

// FirstFailure returns the first failed result, if any.
func (b *BatchResult) FirstFailure() (Result, bool) {
	for _, r := range b.Results {
		if !r.Success {
			return r, true
		}
	}
	return Result{}, false
}
