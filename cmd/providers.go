package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var providersJSON bool

// providersCmd lists the registered providers.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List available providers and their default ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()
		infos := a.service.Providers()

		if providersJSON {
			return writeJSON(cmd.OutOrStdout(), infos)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPORT\tENABLED\tDESCRIPTION")
		for _, p := range infos {
			port := "-"
			if p.DefaultPort > 0 {
				port = fmt.Sprint(p.DefaultPort)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, port, p.Enabled, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "Print JSON instead of a table")
	RootCmd.AddCommand(providersCmd)
}
