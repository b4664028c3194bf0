package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"serotonyl.ru/minipoints-bot/internal/app"
	"serotonyl.ru/minipoints-bot/internal/httpapi"
	"serotonyl.ru/minipoints-bot/internal/seed"
)

var (
	seedFile       string
	linkUserID     int64
	linkExternalID string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, _, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		pool.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill empty tables with initial users, catalog, missions and rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := seed.Load(seedFile)
		if err != nil {
			return err
		}

		pool, cfg, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		svc := app.NewServices(pool, cfg)
		rep, err := seed.NewSeeder(svc.Ledger, svc.Missions).Run(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded: %d users, %d items, %d missions, %d rules\n",
			rep.Users, rep.Items, rep.Missions, rep.Rules)
		return nil
	},
}

var linkUserCmd = &cobra.Command{
	Use:   "link-user",
	Short: "Link a Telegram account to a MiniPoints user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, cfg, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		svc := app.NewServices(pool, cfg)
		if err := svc.Ledger.LinkExternalID(cmd.Context(), linkUserID, linkExternalID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d linked to %s\n", linkUserID, linkExternalID)
		return nil
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print the argon2id hash for HTTP_ADMIN_TOKEN_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := httpapi.HashToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Seed YAML file (default: built-in seed)")

	linkUserCmd.Flags().Int64Var(&linkUserID, "user-id", 0, "MiniPoints user id")
	linkUserCmd.Flags().StringVar(&linkExternalID, "external-id", "", "Telegram user id")
	_ = linkUserCmd.MarkFlagRequired("user-id")
	_ = linkUserCmd.MarkFlagRequired("external-id")

	rootCmd.AddCommand(migrateCmd, seedCmd, linkUserCmd, hashTokenCmd)
}
