package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "board",
		Short:         "Community board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("BOARD_CONFIG"), "path to a YAML config file (env BOARD_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Read every collection once and report unreadable ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	}

	root.AddCommand(serveCmd, checkCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
