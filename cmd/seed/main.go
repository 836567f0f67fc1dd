package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"postbox/internal/auth"
	"postbox/internal/config"
	"postbox/internal/db"
	"postbox/internal/logging"
	"postbox/internal/repository"
	"postbox/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "Manage postbox users directly against the configured database",
		Commands: []*cli.Command{
			userCmd(),
			listCmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func userCmd() *cli.Command {
	var username string
	var admin bool
	return &cli.Command{
		Name:  "user",
		Usage: "Create a user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Name of the user to create",
				Destination: &username,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "admin",
				Usage:       "Grant the admin flag",
				Destination: &admin,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if password == "" {
				return errors.New("missing password from stdin")
			}

			cfg, logger, gormDB, err := open()
			if err != nil {
				return err
			}
			users := repository.NewUserRepository(gormDB)
			authService := service.NewAuthService(users, auth.NewBcryptHasher(cfg.BcryptCost), auth.NewJWTService(cfg.JWTSecret), logger)

			id, err := authService.Register(ctx.Context, service.RegisterInput{
				Username: username,
				Password: password,
				IsAdmin:  admin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "created user %q with id %d (admin=%t)\n", username, id, admin)
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered users",
		Action: func(ctx *cli.Context) error {
			cfg, _, gormDB, err := open()
			if err != nil {
				return err
			}
			users, err := service.NewUserService(repository.NewUserRepository(gormDB), nil, cfg.UserCacheTTL).ListUsers(ctx.Context)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(ctx.App.Writer, "%d\t%s\tadmin=%t\n", u.ID, u.Username, u.IsAdmin)
			}
			return nil
		},
	}
}

func open() (*config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr, nil)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, logger, gormDB, nil
}
