package cmd

import (
	"errors"
	"fmt"
	"os"

	"kv-reconciler/core/logger"
	"kv-reconciler/core/reconcile"
	"kv-reconciler/feature/kv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes, one per failure class.
const (
	ExitOK                 = 0
	ExitError              = 1
	ExitValidation         = 2
	ExitProvider           = 3
	ExitBackendUnavailable = 4
	ExitConcurrentModified = 5
	ExitTimeout            = 6
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "kv-reconciler",
	Short: "Idempotent key-value reconciler",
	Long: `kv-reconciler makes keys in Consul, etcd, S3, SQL tables or CloudFront KeyValueStore
match a desired state. Every write is a compare-and-swap, so concurrent runs never lose updates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with the development config gives readable timestamps for a CLI
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, kv.ErrInvalidManifest) {
		return ExitValidation
	}

	kind := reconcile.KindOf(err)
	switch {
	case kind.IsValidation():
		return ExitValidation
	case kind.IsConfiguration():
		return ExitProvider
	case kind == reconcile.BackendUnavailable:
		return ExitBackendUnavailable
	case kind == reconcile.ConcurrentModification:
		return ExitConcurrentModified
	case kind == reconcile.Timeout:
		return ExitTimeout
	default:
		return ExitError
	}
}
