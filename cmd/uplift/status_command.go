package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().DaemonStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:    %s (pid %d)\n", runningLabel(status.Running), status.PID)
			fmt.Fprintf(out, "Database:  %s\n", status.DBPath)
			fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)

			if len(status.Preflight) > 0 {
				fmt.Fprintln(out, "Preflight checks:")
				for _, check := range status.Preflight {
					state := "FAIL"
					if check.Passed {
						state = "ok"
					}
					fmt.Fprintf(out, "  %-18s [%s] %s\n", check.Name+":", state, check.Detail)
				}
			}
			return nil
		},
	}
}

func runningLabel(value bool) string {
	if value {
		return "running"
	}
	return "stopped"
}
