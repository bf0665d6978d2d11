package main

import (
	"errors"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/utils"
)

const (
	emailFlag    = "email"
	passwordFlag = "password"
	nameFlag     = "name"
	roleFlag     = "role"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Agency login management",
	}
	cmd.AddCommand(newAdminCreateCommand())
	return cmd
}

func newAdminCreateCommand() *cobra.Command {
	flags := map[string]cobraflags.Flag{
		emailFlag:    &cobraflags.StringFlag{Name: emailFlag, Value: "", Usage: "Login email (required)"},
		passwordFlag: &cobraflags.StringFlag{Name: passwordFlag, Value: "", Usage: "Password, at least 8 characters (required)"},
		nameFlag:     &cobraflags.StringFlag{Name: nameFlag, Value: "", Usage: "Full name"},
		roleFlag:     &cobraflags.StringFlag{Name: roleFlag, Value: string(models.RoleAdmin), Usage: "admin or staff"},
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agency login in the configured tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email := utils.NormalizeEmail(flags[emailFlag].GetString())
			password := flags[passwordFlag].GetString()
			role := models.Role(flags[roleFlag].GetString())
			if email == "" || len(password) < 8 {
				return errors.New("--email and a --password of at least 8 characters are required")
			}
			if !role.IsAgency() {
				return fmt.Errorf("--role must be %s or %s", models.RoleAdmin, models.RoleStaff)
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			hash, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			u, err := auth.NewRepository(e.pool).Create(ctx, auth.CreateUserParams{
				TenantID:     e.cfg.Portal.TenantID,
				Email:        email,
				PasswordHash: hash,
				FullName:     flags[nameFlag].GetString(),
				Role:         role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
