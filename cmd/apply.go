package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kv-reconciler/feature/kv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	manifestPath string
	dryRunApply  bool
)

// applyCmd reconciles every entry of a manifest.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile every key in a TOML manifest",
	Long: `Apply a TOML manifest of desired states and print the JSON batch result.

Manifest format:
  provider = "consul"
  host = "127.0.0.1"
  timeout = 30

  [[entry]]
  key = "service/web/replicas"
  value = "3"

  [[entry]]
  key = "service/old"
  state = "absent"

Entries run concurrently (RECONCILE_CONCURRENCY). A failed entry does not stop the
others; the exit code reflects the first failure in manifest order.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&manifestPath, "file", "f", "", "Path to the manifest")
	applyCmd.Flags().BoolVar(&dryRunApply, "dry-run", false, "Report changes without applying them")
	_ = applyCmd.MarkFlagRequired("file")

	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := kv.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	if dryRunApply {
		m.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Applying manifest", zap.String("path", manifestPath), zap.Int("entries", len(m.Entries)))
	batch, err := a.service.Apply(ctx, m)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), batch); err != nil {
		return err
	}

	if failed, ok := batch.FirstFailure(); ok {
		return fmt.Errorf("%d of %d entries failed, first %q: %w",
			batch.Summary.Failed, batch.Summary.Total, failed.Key, failed.Err())
	}
	return nil
}
