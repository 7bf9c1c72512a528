package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwinters/loreboard/internal/storage"
)

var createName string

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Create a new campaign file",
	Long: `Create a new campaign file at the given path.

The file is initialized with the campaign schema and default metadata.
Creation fails if the file already exists.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		store, err := storage.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating campaign: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		if createName != "" {
			if _, err := store.UpdateMeta(ctx, storage.MetaPatch{Name: &createName}); err != nil {
				fmt.Fprintf(os.Stderr, "Error setting campaign name: %v\n", err)
				os.Exit(1)
			}
		}

		meta, err := store.Meta(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading campaign: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created campaign %q at %s\n", meta.Name, path)
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "campaign name (default \"New Campaign\")")
	rootCmd.AddCommand(createCmd)
}
