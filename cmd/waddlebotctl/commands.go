package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waddlebot/core/pkg/storage"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Manage the operator-defined command table",
}

var commandsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		cmds, err := db.Commands.ListActive(ctx)
		if err != nil {
			return err
		}
		for _, c := range cmds {
			fmt.Printf("%-20s %-4s %-10s %s\n", c.Command, c.Prefix, c.Transport, c.LocationURL)
		}
		return nil
	},
}

var (
	cmdCommand     string
	cmdPrefix      string
	cmdDescription string
	cmdLocationURL string
	cmdTransport   string
	cmdMethod      string
	cmdModuleID    string
	cmdEntityID    string
	cmdAuthReq     bool
	cmdRateLimit   int
)

var commandsUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or update a command record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Commands.Upsert(ctx, storage.Command{
			Command:            cmdCommand,
			Prefix:             cmdPrefix,
			Description:        cmdDescription,
			LocationURL:        cmdLocationURL,
			Transport:          storage.Transport(cmdTransport),
			Method:             cmdMethod,
			ModuleID:           cmdModuleID,
			EntityID:           cmdEntityID,
			AuthRequired:       cmdAuthReq,
			RateLimitPerMinute: cmdRateLimit,
			TriggerType:        storage.TriggerCommand,
			IsActive:           true,
		})
	},
}

func init() {
	commandsCmd.AddCommand(commandsListCmd, commandsUpsertCmd)

	commandsUpsertCmd.Flags().StringVar(&cmdCommand, "command", "", "command name (required)")
	commandsUpsertCmd.Flags().StringVar(&cmdPrefix, "prefix", "!", "invocation prefix")
	commandsUpsertCmd.Flags().StringVar(&cmdDescription, "description", "", "human-readable description")
	commandsUpsertCmd.Flags().StringVar(&cmdLocationURL, "location-url", "", "dispatch target URL (required)")
	commandsUpsertCmd.Flags().StringVar(&cmdTransport, "transport", string(storage.TransportREST), "container|rest|grpc|lambda|gcp_function|openwhisk")
	commandsUpsertCmd.Flags().StringVar(&cmdMethod, "method", "", "HTTP method or gRPC full method path")
	commandsUpsertCmd.Flags().StringVar(&cmdModuleID, "module-id", "", "owning module identifier")
	commandsUpsertCmd.Flags().StringVar(&cmdEntityID, "entity-id", "", "scope to one entity_id; empty means global")
	commandsUpsertCmd.Flags().BoolVar(&cmdAuthReq, "auth-required", false, "require an authorized identity")
	commandsUpsertCmd.Flags().IntVar(&cmdRateLimit, "rate-limit-per-minute", 0, "override the default rate limit; 0 uses the router default")
	_ = commandsUpsertCmd.MarkFlagRequired("command")
	_ = commandsUpsertCmd.MarkFlagRequired("location-url")
}
