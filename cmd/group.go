package cmd

import (
	"context"
	"fmt"
	"time"

	"yatube/models"

	"github.com/spf13/cobra"
)

var groupDescription string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <slug> <title>",
	Short: "Create a group posts can be assigned to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.close()

		g := &models.Group{Slug: args[0], Title: args[1], Description: groupDescription}
		if err := be.groups.Create(ctx, g); err != nil {
			return fmt.Errorf("create group %q: %w", g.Slug, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created group %s (%s)\n", g.Slug, g.ID.Hex())
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.close()

		groups, err := be.groups.List(ctx)
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", g.ID.Hex(), g.Slug, g.Title)
		}
		return nil
	},
}

func init() {
	groupAddCmd.Flags().StringVarP(&groupDescription, "description", "d", "", "group description")
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupListCmd)
}
