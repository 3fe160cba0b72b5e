package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Chidera001-dev/e-commerce-system/internal/config"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/Chidera001-dev/e-commerce-system/pkg/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries what every subcommand needs; it is filled in before any RunE.
type app struct {
	envFile string
	cfg     *config.Config
	log     *slog.Logger
}

func main() {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operator tooling for the e-commerce backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if a.envFile != "" {
				files = append(files, a.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.NewWithWriter(os.Stderr, "opsctl", cfg.LogLevel)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "read configuration from this .env file")

	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(deadLettersCmd(a))
	rootCmd.AddCommand(ordersCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              a.cfg.DBHost,
		Port:              a.cfg.DBPort,
		User:              a.cfg.DBUser,
		Password:          a.cfg.DBPassword,
		DBName:            a.cfg.DBName,
		MigrationsDirPath: a.cfg.MigrationsPath,
		LockTimeout:       a.cfg.TxLockTimeout,
	}
}

func (a *app) openRepository() (*repository.Repository, error) {
	return repository.NewRepository(a.credentials())
}

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("path"); path != "" {
				a.cfg.MigrationsPath = path
			}
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(a.credentials()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().String("path", "", "migrations directory (default MIGRATIONS_PATH)")
	return cmd
}
