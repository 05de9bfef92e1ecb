package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ebus_manager/internal/config"
	"ebus_manager/internal/logger"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
	"ebus_manager/internal/tracking"
)

// bootstrap loads configuration, logging and the database.
func bootstrap() (*config.Config, io.Writer, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	out := logger.Setup(cfg.LogFile, cfg.LogLevel)
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, out, db, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the database schema",
		Action: func(c *cli.Context) error {
			_, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			return config.Migrate(db)
		},
	}
}

func purgeGPSCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge-gps",
		Usage: "delete GPS samples older than the retention horizon",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "older-than", Usage: "override GPS_RETENTION"},
		},
		Action: func(c *cli.Context) error {
			cfg, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			horizon := cfg.GPSRetention
			if c.IsSet("older-than") {
				horizon = c.Duration("older-than")
			}
			_, err = tracking.NewRetention(store.New(db), horizon, 0, nil).PurgeOnce(c.Context)
			return err
		},
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "create an admin account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "role", Value: models.RoleSuperAdmin},
		},
		Action: func(c *cli.Context) error {
			role := c.String("role")
			if role != models.RoleAdmin && role != models.RoleSuperAdmin {
				return fmt.Errorf("role must be %s or %s", models.RoleAdmin, models.RoleSuperAdmin)
			}
			if len(c.String("password")) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			_, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(c.String("password")), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			admin := &models.AdminUser{
				Username:     c.String("username"),
				Email:        strings.ToLower(c.String("email")),
				PasswordHash: string(hash),
				FullName:     c.String("name"),
				Role:         role,
				IsActive:     true,
			}
			ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()
			if err := store.New(db).CreateAdmin(ctx, admin); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "created %s %s (id %d)\n", admin.Role, admin.Email, admin.ID)
			return nil
		},
	}
}
