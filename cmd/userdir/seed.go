package main

import (
	"github.com/spf13/cobra"

	"github.com/ssoserver/user-directory/internal/infrastructure/config"
	"github.com/ssoserver/user-directory/internal/infrastructure/seed"
	"github.com/ssoserver/user-directory/pkg/logger"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the supported roles and the initial administrator",
		Long: `Creates every supported role and the initial administrator when they
are missing. Existing users are left untouched. The administrator can be
overridden with SEED_ADMIN_EMAIL, SEED_ADMIN_PASSWORD, SEED_ADMIN_FIRST_NAME
and SEED_ADMIN_LAST_NAME.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close(ctx)

			if err := a.prepare(ctx, b); err != nil {
				return err
			}
			if err := seed.NewSeeder(b.store, logger.Component("seed")).Run(ctx, adminUser(a.cfg.Seed)); err != nil {
				return err
			}
			a.log.Info().Msg("seed complete")
			return nil
		},
	}
}

// adminUser applies configured overrides to seed.DefaultAdmin.
func adminUser(c config.SeedConfig) seed.User {
	u := seed.DefaultAdmin
	if c.AdminEmail != "" {
		u.Email = c.AdminEmail
	}
	if c.AdminPassword != "" {
		u.Password = c.AdminPassword
	}
	if c.AdminFirstName != "" {
		u.FirstName = c.AdminFirstName
	}
	if c.AdminLastName != "" {
		u.LastName = c.AdminLastName
	}
	return u
}
