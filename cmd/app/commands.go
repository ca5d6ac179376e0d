// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/database"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
	"codeberg.org/oliverandrich/newsletter/internal/services/auth"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					if err := database.RunMigrations(db.DB); err != nil {
						return fmt.Errorf("failed to migrate: %w", err)
					}
					return printVersion(cmd, db)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the last migration",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					if err := database.MigrateDown(db.DB); err != nil {
						return fmt.Errorf("failed to roll back: %w", err)
					}
					return printVersion(cmd, db)
				}),
			},
			{
				Name:  "status",
				Usage: "Print the current schema version",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					return printVersion(cmd, db)
				}),
			},
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Create an operator account for the admin dashboard",
		Flags: credentialFlags(),
		Action: withMigratedDB(func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error {
			svc := auth.NewService(repository.New(db))
			user, err := svc.CreateUser(ctx, cmd.String("username"), secret.New(cmd.String("password")))
			if err != nil {
				return describeAuthError(err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "created operator %q (id %d)\n", user.Username, user.ID)
			return nil
		}),
	}
}

func changePasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "change-password",
		Usage: "Set a new password for an operator",
		Flags: credentialFlags(),
		Action: withMigratedDB(func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error {
			svc := auth.NewService(repository.New(db))
			username := cmd.String("username")
			if err := svc.ChangePassword(ctx, username, secret.New(cmd.String("password"))); err != nil {
				return describeAuthError(err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "updated password of %q\n", username)
			return nil
		}),
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "username",
			Aliases:  []string{"u"},
			Usage:    "Operator username",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password",
			Aliases:  []string{"p"},
			Usage:    "Operator password",
			Sources:  cli.EnvVars("OPERATOR_PASSWORD"),
			Required: true,
		},
	}
}

func describeAuthError(err error) error {
	var pwErr *auth.PasswordValidationError
	if errors.As(err, &pwErr) {
		return fmt.Errorf("password rejected: %s", strings.Join(pwErr.Messages(), "; "))
	}
	return err
}

func printVersion(cmd *cli.Command, db *sqlx.DB) error {
	version, err := database.Version(db.DB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "schema version %d\n", version)
	return nil
}

type dbAction func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error

// withDB connects without touching the schema.
func withDB(fn dbAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return fn(ctx, cmd, db)
	}
}

// withMigratedDB connects and brings the schema up to date first.
func withMigratedDB(fn dbAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return fn(ctx, cmd, db)
	}
}
