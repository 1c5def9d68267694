package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notekeeper/notekeeper/internal/config"
	"github.com/notekeeper/notekeeper/internal/database"
	"github.com/notekeeper/notekeeper/internal/notes/repository"
	"github.com/notekeeper/notekeeper/internal/sessions"
	"github.com/notekeeper/notekeeper/internal/users"
)

func migrateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create indexes and tables for the configured stores",
		Long: `Create the unique slug index (MongoDB) or the notes table (Postgres)
for the store selected by NOTES_STORE, plus the user and session indexes
when MongoDB is configured. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return migrate(ctx, cfg, func(format string, v ...interface{}) {
				fmt.Fprintf(cmd.OutOrStdout(), format+"\n", v...)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")
	return cmd
}

func migrate(ctx context.Context, cfg *config.Config, report func(string, ...interface{})) error {
	if cfg.Notes.Store == config.StoreMemory && cfg.MongoDB.URI == "" {
		report("store is %s: nothing to migrate", cfg.Notes.Store)
		return nil
	}
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB.Database)
		if cfg.Notes.Store == config.StoreMongo {
			if err := repository.NewMongoRepo(db).EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("note indexes: %w", err)
			}
			report("mongo: note indexes ok")
		}
		if err := users.NewMongoUserRepository(db.Collection("users")).EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("user indexes: %w", err)
		}
		if err := sessions.NewMongoRepository(db.Collection("sessions")).EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("session indexes: %w", err)
		}
		report("mongo: user and session indexes ok")
	}
	if cfg.Notes.Store == config.StorePostgres {
		pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, 10*time.Second)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.NewPostgresRepo(pool).EnsureSchema(ctx); err != nil {
			return fmt.Errorf("note schema: %w", err)
		}
		report("postgres: notes table ok")
	}
	return nil
}
