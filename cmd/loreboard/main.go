package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loreboard",
	Short: "Campaign organizer backend",
	Long: `Loreboard manages tabletop campaign files: kanban lists of
template-shaped cards, nested folders, and a link graph between cards,
all stored in a single SQLite file.

Run 'loreboard serve' to expose the campaign over a local HTTP API for
a frontend, or use the file subcommands directly.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
