package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/unitledger/internal/config"
	"github.com/MarkoPoloResearchLab/unitledger/internal/store/migrations"
	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "unitledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "unitledgerd",
		Short:         "Unit ledger HTTP and gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	registerFlags(cmd)
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var databaseURL string
	return &cobra.Command{
		Use:       fmt.Sprintf("migrate [%s]", strings.Join(migrations.Supported(), "|")),
		Short:     "Apply or inspect the PostgreSQL schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: migrations.Supported(),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(flagString(cmd, flagEnvFile)); err != nil {
				return err
			}
			v := newViper()
			if err := v.BindPFlag(flagDatabaseURL, cmd.Flag(flagDatabaseURL)); err != nil {
				return err
			}
			databaseURL = v.GetString(flagDatabaseURL)
			if !config.IsPostgresURL(databaseURL) {
				return fmt.Errorf("migrate requires a postgres database url")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := migrations.CommandUp
			if len(args) == 1 {
				command = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return migrations.Run(ctx, databaseURL, command)
		},
	}
}
