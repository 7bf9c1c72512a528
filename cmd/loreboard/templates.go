package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwinters/loreboard/internal/storage"
)

var templatesCmd = &cobra.Command{
	Use:   "templates <file>",
	Short: "List the card templates in a campaign",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening campaign: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		templates, err := store.ListTemplates(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing templates: %v\n", err)
			os.Exit(1)
		}
		if len(templates) == 0 {
			fmt.Println("No templates defined.")
			return
		}

		for _, tpl := range templates {
			fmt.Printf("%s  %s (%d fields)\n", tpl.ID, tpl.Name, len(tpl.FieldDefinitions))
			for _, def := range tpl.FieldDefinitions {
				fmt.Printf("    %-20s %s\n", def.Key, def.Type)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
