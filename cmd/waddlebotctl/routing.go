package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var routingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Inspect the routing table for a community",
}

var routingCommunityID string

var routingGatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "List the active outbound gateways for a community",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		gateways, err := db.Routing.GatewaysForCommunity(ctx, routingCommunityID)
		if err != nil {
			return err
		}
		for _, g := range gateways {
			fmt.Printf("%-10s %-20s %s\n", g.Platform, g.ServerID, g.ChannelID)
		}
		return nil
	},
}

var routingEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the entities belonging to a community",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		entities, err := db.Routing.EntitiesForCommunity(ctx, routingCommunityID)
		if err != nil {
			return err
		}
		for _, e := range entities {
			fmt.Printf("%-30s %-10s %s\n", e.EntityID, e.Platform, e.ChannelID)
		}
		return nil
	},
}

func init() {
	routingCmd.AddCommand(routingGatewaysCmd, routingEntitiesCmd)

	routingCmd.PersistentFlags().StringVar(&routingCommunityID, "community-id", "", "community id (required)")
	_ = routingGatewaysCmd.MarkFlagRequired("community-id")
	_ = routingEntitiesCmd.MarkFlagRequired("community-id")
}
