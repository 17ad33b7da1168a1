package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/allureimpex/allure-impex-api/internal/service"
)

func createAdminCmd() *cobra.Command {
	var in service.CreateAdminInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			stores, err := e.openStores(ctx)
			if err != nil {
				return err
			}
			defer e.closeStores(stores)

			svc := service.New(service.Deps{
				Stores:     stores,
				BcryptCost: e.cfg.BcryptCost,
				Log:        e.log,
			})
			u, err := svc.Users.CreateAdmin(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s <%s> created (id %s)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "Admin", "display name")
	f.StringVar(&in.Email, "email", "", "login email")
	f.StringVar(&in.Password, "password", "", "password (default $ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
