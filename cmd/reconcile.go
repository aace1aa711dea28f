package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kv-reconciler/feature/kv"

	"github.com/spf13/cobra"
)

var reconcileReq kv.Request

// reconcileCmd reconciles a single key.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Make one key match a desired state",
	Long: `Reconcile one key against a provider and print the JSON result.

The key is read, compared with the desired state and written only when it differs.
Writes and deletes are compare-and-swap; if another writer changes the key in between,
the reconciliation re-reads and retries up to --max-attempts times.

Examples:
  # Ensure a value exists in Consul
  reconcile --key service/web/replicas --value 3

  # Remove a key from etcd
  reconcile --provider etcd --key service/old --state absent

  # Report what would change without writing
  reconcile --provider sql --key feature/flag --value on --dry-run`,
	RunE: runReconcile,
}

func init() {
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileReq.Provider, "provider", "", "Provider name (default from RECONCILE_PROVIDER, else consul)")
	f.StringVar(&reconcileReq.Host, "host", "", "Provider host (default from RECONCILE_HOST for consul and etcd; s3 and sql use their own settings)")
	f.IntVar(&reconcileReq.Port, "port", 0, "Provider port (default is provider specific)")
	f.StringVar(&reconcileReq.State, "state", "present", "Desired state: present or absent")
	f.StringVar(&reconcileReq.Key, "key", "", "Key to reconcile")
	f.StringVar(&reconcileReq.Value, "value", "", "Desired value (required when state is present)")
	f.IntVar(&reconcileReq.Timeout, "timeout", 0, "Seconds allowed for the whole call (default from RECONCILE_TIMEOUT)")
	f.IntVar(&reconcileReq.Delay, "delay", 0, "Alias for --timeout")
	f.IntVar(&reconcileReq.MaxAttempts, "max-attempts", 0, "Attempts before reporting a concurrent modification (default 3)")
	f.BoolVar(&reconcileReq.DryRun, "dry-run", false, "Report the change without applying it")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.service.Reconcile(ctx, reconcileReq)
	if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil && err == nil {
		return werr
	}
	return err
}
