// Command resolveitctl holds operator tasks that run against the resolveit database
// outside the API process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/logging"
)

const programName = "resolveitctl"

var globalFlags = struct {
	debug bool
}{}

type stores struct {
	client databases.ClientHelper
	cases  databases.CaseDatabase
	panels databases.PanelDatabase
	users  databases.UserDatabase
}

func (s *stores) close(ctx context.Context) {
	if s.client == nil {
		return
	}
	if err := s.client.Disconnect(ctx); err != nil {
		zap.S().Warnw("failed to disconnect from database", "error", err)
	}
}

// connect is swapped out by tests
var connect = func(ctx context.Context, cfg *config.Config) (*stores, error) {
	client, err := databases.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := databases.NewDatabase(cfg, client)
	return &stores{
		client: client,
		cases:  databases.NewCaseDatabase(db),
		panels: databases.NewPanelDatabase(db),
		users:  databases.NewUserDatabase(db),
	}, nil
}

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Operator tasks for the resolveit database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if _, err := logging.New(globalFlags.debug); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	}

	rootCmd.AddCommand(reconcilePanelsCommand())
	rootCmd.AddCommand(seedAdminCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
