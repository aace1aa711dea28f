package cmd

import (
	"errors"
	"fmt"
	"testing"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/feature/kv"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Success", nil, ExitOK},
		{"Missing Key", reconcile.NewError(reconcile.MissingKey, "", nil), ExitValidation},
		{"Missing Value", reconcile.NewError(reconcile.MissingValue, "k", nil), ExitValidation},
		{"Unknown Provider", reconcile.NewError(reconcile.UnknownProvider, "", nil), ExitProvider},
		{"Provider Unavailable", reconcile.NewError(reconcile.ProviderUnavailable, "", nil), ExitProvider},
		{"Backend Unavailable", reconcile.NewError(reconcile.BackendUnavailable, "k", nil), ExitBackendUnavailable},
		{"Concurrent Modification", reconcile.NewError(reconcile.ConcurrentModification, "k", nil), ExitConcurrentModified},
		{"Timeout", reconcile.NewError(reconcile.Timeout, "k", nil), ExitTimeout},
		{"Wrapped", fmt.Errorf("1 of 3 entries failed: %w", reconcile.NewError(reconcile.Timeout, "k", nil)), ExitTimeout},
		{"Manifest", fmt.Errorf("%w: no entries", kv.ErrInvalidManifest), ExitValidation},
		{"Other", errors.New("failed to load config"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
