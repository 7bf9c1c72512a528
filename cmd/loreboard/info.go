package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwinters/loreboard/internal/storage"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show campaign metadata and object counts",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening campaign: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		meta, err := store.Meta(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading campaign: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Campaign:    %s\n", meta.Name)
		if meta.Description != "" {
			fmt.Printf("Description: %s\n", meta.Description)
		}
		fmt.Printf("Created:     %s\n", meta.CreatedAt)
		fmt.Printf("Modified:    %s\n", meta.ModifiedAt)
		fmt.Printf("Version:     %s\n", meta.Version)

		for _, c := range []struct {
			label string
			table string
		}{
			{"Templates", "card_templates"},
			{"Lists", "lists"},
			{"Cards", "cards"},
			{"Links", "card_links"},
			{"Images", "image_blobs"},
		} {
			var n int
			row := store.RawDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table)
			if err := row.Scan(&n); err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s: %v\n", c.label, err)
				os.Exit(1)
			}
			fmt.Printf("%-12s %d\n", c.label+":", n)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
