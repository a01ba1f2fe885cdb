package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/config"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/logger"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/migration"
	"github.com/ResonantCEO/Doobie-Division-sub002/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	migrationsPath string
	logLevel       string
)

func main() {
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory (default: embedded set; ./migrations for create/list)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    "migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	switch args[0] {
	case "create":
		err = runCreate(log, args[1:])
	case "list":
		err = runList()
	default:
		err = runDatabase(log, args[0], args[1:])
	}
	if err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func localDir() string {
	if migrationsPath == "" {
		return "migrations"
	}
	return migrationsPath
}

func runCreate(log *zap.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(localDir(), args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList() error {
	list, err := migration.ListMigrations(localDir())
	if err != nil {
		return err
	}
	for _, m := range list {
		fmt.Println("  -", m)
	}
	return nil
}

// runDatabase handles the commands that need a postgres connection
func runDatabase(log *zap.Logger, command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("driver %q: SQL migrations target postgres, sqlite is migrated by the server on startup", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := openMigrator(db, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func openMigrator(db *sql.DB, log *zap.Logger) (*migration.Migrator, error) {
	if migrationsPath == "" {
		return migration.NewFromFS(db, migrations.FS, log)
	}
	abs, err := filepath.Abs(migrationsPath)
	if err != nil {
		return nil, err
	}
	return migration.New(db, abs, log)
}

func intArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("usage: migrate %s", usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Order schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  version               Show the applied version
  force <version>       Record a version without running it
  create <name> [desc]  Write a new up/down pair
  list                  List migrations in the directory

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Connection settings come from config.toml and DOOBIE_DATABASE_* variables.
`)
}
