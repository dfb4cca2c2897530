package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waddlebot/core/pkg/storage"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Manage entity_id -> community_id registrations",
}

var (
	entEntityID    string
	entPlatform    string
	entServerID    string
	entChannelID   string
	entCommunityID string
)

var entitiesUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Register or update an entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Entities.Upsert(ctx, storage.Entity{
			EntityID:    entEntityID,
			Platform:    entPlatform,
			ServerID:    entServerID,
			ChannelID:   entChannelID,
			CommunityID: entCommunityID,
		})
	},
}

var entitiesListCmd = &cobra.Command{
	Use:   "list-platform",
	Short: "List entities registered for a platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		entities, err := db.Entities.EntitiesByPlatform(ctx, entPlatform)
		if err != nil {
			return err
		}
		for _, e := range entities {
			fmt.Printf("%-30s %-10s %s\n", e.EntityID, e.Platform, e.CommunityID)
		}
		return nil
	},
}

func init() {
	entitiesCmd.AddCommand(entitiesUpsertCmd, entitiesListCmd)

	entitiesUpsertCmd.Flags().StringVar(&entEntityID, "entity-id", "", "canonical entity_id, e.g. twitch:channel:123 (required)")
	entitiesUpsertCmd.Flags().StringVar(&entPlatform, "platform", "", "platform name (required)")
	entitiesUpsertCmd.Flags().StringVar(&entServerID, "server-id", "", "platform-native server/guild/workspace id")
	entitiesUpsertCmd.Flags().StringVar(&entChannelID, "channel-id", "", "platform-native channel id")
	entitiesUpsertCmd.Flags().StringVar(&entCommunityID, "community-id", "", "owning community id (required)")
	_ = entitiesUpsertCmd.MarkFlagRequired("entity-id")
	_ = entitiesUpsertCmd.MarkFlagRequired("platform")
	_ = entitiesUpsertCmd.MarkFlagRequired("community-id")

	entitiesListCmd.Flags().StringVar(&entPlatform, "platform", "", "platform name (required)")
	_ = entitiesListCmd.MarkFlagRequired("platform")
}
