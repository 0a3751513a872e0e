package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/config"
	"github.com/zulandar/qcyard/internal/db"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the QC database",
		Long:  "Migrates all QC tables and seeds inspectors, production orders and customer requirements from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)
	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nQC database initialized successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedDirectory(gormDB, cfg.Seed); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d inspectors, %d production orders, %d customers\n",
		len(cfg.Seed.Inspectors), len(cfg.Seed.Orders), len(cfg.Seed.Customers))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the QC database",
		Long: `Drops every QC table and re-creates them from config (migrate + seed).

Asks for confirmation on a terminal; pass --yes when running unattended.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if !skipConfirm {
		if !confirmReset(cmd, cfg.Database.Driver) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := db.DropAll(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Dropped QC tables")

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nQC database reset and re-initialized successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, driver string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(out, "stdin is not a terminal; pass --yes to reset without a prompt.")
		return false
	}

	fmt.Fprintf(out, "WARNING: This will permanently delete all QC data in the %s database.\n", driver)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
