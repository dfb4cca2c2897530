// waddlebotctl is the operator CLI for managing the commands, entities, and
// routing tables described in spec.md §3 — grounded on cuemby-warren's
// cmd/warren: a cobra root command with one subcommand file per resource,
// dialing pkg/storage directly rather than going through the router's API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waddlebot/core/pkg/storage"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:   "waddlebotctl",
	Short: "Manage waddlebot commands, entities, and routing",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres DSN")
	rootCmd.AddCommand(commandsCmd, entitiesCmd, routingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*storage.Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return storage.NewClient(ctx, storage.Config{DatabaseURL: databaseURL})
}
