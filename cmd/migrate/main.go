package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

type options struct {
	path     string
	fromDisk bool
	args     []string
}

func main() {
	var (
		opts     options
		logLevel string
	)
	flag.StringVar(&opts.path, "path", defaultMigrationsPath, "Path to migrations directory for create, list and -disk")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.fromDisk, "disk", false, "Read migrations from -path instead of the embedded set")
	flag.Usage = printUsage
	flag.Parse()

	opts.args = flag.Args()
	if len(opts.args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(opts, log)
	_ = log.Sync()
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", opts.args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(opts options, log *zap.Logger) error {
	path, err := filepath.Abs(opts.path)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}
	command, rest := opts.args[0], opts.args[1:]

	// create and list only touch the filesystem
	switch command {
	case "create":
		return create(path, rest, log)
	case "list":
		return list(path, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if opts.fromDisk {
		m, err = migration.NewFromPath(db, path, log)
	} else {
		m, err = migration.NewEmbedded(db, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		n, err := downSteps(rest)
		if err != nil {
			return err
		}
		return m.Down(n)
	case "step":
		n, err := intArg(rest, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(rest, "version")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func create(path string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a migration name", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(path, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(path string, log *zap.Logger) error {
	entries, err := migration.ListMigrations(path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Info("No migrations found", zap.String("path", path))
		return nil
	}
	for _, e := range entries {
		suffix := ""
		if !e.HasDown {
			suffix = " (no down)"
		}
		fmt.Printf("  %06d %s%s\n", e.Version, e.Name, suffix)
	}
	return nil
}

// downSteps reads "down", "down <n>" or "down all"; 0 means all
func downSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	if args[0] == "all" {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid step count %q", errUsage, args[0])
	}
	return n, nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Catalog sync database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down [n|all]          Roll back n migrations (default 1)
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version and clear the dirty flag
  create <name> [desc]  Create the next numbered migration pair under -path
  list                  List migrations under -path

Flags:
  -path string          Migrations directory (default: ./migrations)
  -disk                 Apply migrations from -path instead of the embedded set
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  CATALOG_DATABASE_HOST, CATALOG_DATABASE_PORT, CATALOG_DATABASE_USER,
  CATALOG_DATABASE_PASSWORD, CATALOG_DATABASE_DBNAME, CATALOG_DATABASE_SSLMODE`)
}
