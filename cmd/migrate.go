package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/qrave1/FocusRoom/internal/application/config"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/postgres/migrations"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate [command] [args]",
	Short:   "Миграции схемы room_state",
	Long:    "Выполняет команду goose над встроенными миграциями. Без аргументов - up.\nНужен только при STORAGE=postgres.",
	Example: "  focusroom migrate\n  focusroom migrate status\n  focusroom migrate down-to 0",
	RunE: func(cmd *cobra.Command, args []string) error {
		command, rest := migrateArgs(args)

		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if cfg.Storage != config.StoragePostgres {
			slog.Warn("Storage is not postgres, migrations are applied anyway", slog.String("storage", cfg.Storage))
		}

		goose.SetBaseFS(migrations.MigrationsFS)

		db, err := goose.OpenDBWithDriver("pgx", cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}

		err = goose.RunContext(cmd.Context(), command, db, ".", rest...)
		if err != nil {
			err = fmt.Errorf("goose %s: %w", command, err)
		}

		return errors.Join(err, db.Close())
	},
}

// migrateArgs отделяет команду goose от ее аргументов, по умолчанию up
func migrateArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "up", nil
	}

	return args[0], args[1:]
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
