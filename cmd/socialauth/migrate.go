package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/socialauth/internal/config"
	migrations "github.com/dropDatabas3/socialauth/migrations/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica las migraciones embebidas sobre PostgreSQL",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			steps := 0
			if len(args) >= 1 && args[0] != "" {
				action = strings.ToLower(args[0])
			}
			if len(args) >= 2 {
				if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
					steps = n
				}
			}
			return migrate(cmd.Context(), action, steps)
		},
	}
}

func migrate(ctx context.Context, action string, steps int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("migrate: storage.dsn no configurado")
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer pool.Close()

	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return fmt.Errorf("unknown action %q. Use: up | down [steps]", action)
	}

	files, err := listSQL(suffix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No *%s migrations found. Nothing to do.\n", suffix)
		return nil
	}
	sort.Strings(files)
	if action == "down" {
		reverseInPlace(files) // los downs corren en orden inverso
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	fmt.Printf("Applying %d %s migration(s)...\n", len(files), action)
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	fmt.Println("Migrations completed.")
	return nil
}

func listSQL(suffix string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, name string) error {
	b, err := migrations.FS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	fmt.Printf("OK %s (%s)\n", name, time.Since(start).Truncate(time.Millisecond))
	return nil
}
