package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

// passwordEnv keeps the password out of shell history when set
const passwordEnv = "RESOLVEIT_ADMIN_PASSWORD"

const minAdminPassword = 12

type seedAdminOptions struct {
	email    string
	name     string
	password string
}

func seedAdminCommand() *cobra.Command {
	var opts seedAdminOptions
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account",
		Long: "Creates an admin account. The password comes from --password or the\n" +
			passwordEnv + " environment variable. Running it again for an existing\n" +
			"admin is a no-op.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv(passwordEnv)
			}
			if err := opts.validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			st, err := connect(ctx, configFrom(cmd))
			if err != nil {
				return err
			}
			defer st.close(ctx)
			return seedAdmin(ctx, st, opts, time.Now(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "admin email address")
	cmd.Flags().StringVar(&opts.name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "password, prefer "+passwordEnv)
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (o *seedAdminOptions) validate() error {
	o.email = strings.ToLower(strings.TrimSpace(o.email))
	o.name = strings.TrimSpace(o.name)
	switch {
	case !lifecycle.ValidEmail(o.email):
		return fmt.Errorf("%q is not a valid email address", o.email)
	case len(o.name) < 2:
		return errors.New("name must be at least 2 characters long")
	case len(o.password) < minAdminPassword:
		return fmt.Errorf("password must be at least %d characters long", minAdminPassword)
	}
	return nil
}

func seedAdmin(ctx context.Context, st *stores, opts seedAdminOptions, now time.Time, out io.Writer) error {
	existing, err := st.users.FindByEmail(ctx, opts.email)
	switch {
	case err == nil && existing.Details.Role == models.UserRoleAdmin:
		fmt.Fprintf(out, "admin %s already exists (%s)\n", opts.email, existing.ID.Hex())
		return nil
	case err == nil:
		return fmt.Errorf("%s already has a %s account", opts.email, existing.Details.Role)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("failed to look up %s: %w", opts.email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{Details: models.UserDetails{
		Name:         opts.name,
		Email:        opts.email,
		PasswordHash: string(hash),
		Role:         models.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}
	if err := st.users.Insert(ctx, user); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	zap.S().Infow("admin account created", "userId", user.ID.Hex(), "email", opts.email)
	fmt.Fprintf(out, "created admin %s (%s)\n", opts.email, user.ID.Hex())
	return nil
}
