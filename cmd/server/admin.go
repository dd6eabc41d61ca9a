package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDB(); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
		return nil
	},
}

var adminFlags struct {
	username string
	password string
	email    string
	fullName string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user",
	Example: `  phonestore create-admin --username root --password 's3cret-pass' \
    --email root@example.com --full-name "Store Owner"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(adminFlags.password) < 8 {
			return errors.New("password must be at least 8 characters")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		u, err := auth.CreateUser(cmd.Context(), db, auth.NewUser{
			Username: adminFlags.username,
			Password: adminFlags.password,
			Email:    adminFlags.email,
			FullName: adminFlags.fullName,
			Role:     models.RoleAdmin,
			IsActive: true,
		})
		if err != nil {
			return err
		}
		log.Info("admin created", zap.Uint("id", u.ID), zap.String("username", u.Username))
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.username, "username", "", "login name")
	f.StringVar(&adminFlags.password, "password", "", "password, at least 8 characters")
	f.StringVar(&adminFlags.email, "email", "", "email address")
	f.StringVar(&adminFlags.fullName, "full-name", "", "display name")
	for _, name := range []string{"username", "password", "email", "full-name"} {
		_ = createAdminCmd.MarkFlagRequired(name)
	}
}
