package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notekeeper/notekeeper/pkg/logger"
)

var Version = "dev"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notesctl",
		Short:         "notesctl - maintenance commands for the notekeeper service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(slugifyCmd())
	root.AddCommand(migrateCmd())
	return root
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
