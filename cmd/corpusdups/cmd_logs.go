package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) logsCmd() *cobra.Command {
	logs := &cobra.Command{
		Use:   "logs",
		Short: "Work with session logs and run snapshots",
	}
	logs.AddCommand(&cobra.Command{
		Use:   "export [dest.zip]",
		Short: "Bundle the workspace logs into a zip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.archive.ExportZip(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "Logs exported to %s\n", args[0])
			return err
		},
	})
	return logs
}
