// File: cmd/auth_api/init.go
package main

import (
	"auth_api/internal/config"
	"auth_api/internal/platform/crypto"

	"github.com/spf13/cobra"
)

const generatedPasswordLength = 16

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the initial admin user",
		Long: `Create the admin account named by INIT_ADMIN_USERNAME / INIT_ADMIN_EMAIL.
Running it again is a no-op. When INIT_ADMIN_PASSWORD is empty a password is generated and printed once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			users, cleanup, err := initializeUserService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			password := cfg.InitAdminPassword
			generated := password == ""
			if generated {
				if password, err = crypto.GeneratePassword(generatedPasswordLength); err != nil {
					return err
				}
			}

			admin, created, err := users.EnsureAdmin(cmd.Context(), cfg.InitAdminUsername, cfg.InitAdminEmail, password)
			if err != nil {
				return err
			}
			if !created {
				cmd.Printf("Admin user %q already exists\n", admin.Username)
				return nil
			}
			cmd.Printf("Created admin user %q (%s)\n", admin.Username, admin.ExternalUUID)
			if generated {
				cmd.Printf("Generated password: %s\n", password)
			}
			return nil
		},
	}
}
