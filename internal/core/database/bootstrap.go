package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the schema unless the meta table already records
// the current version. The script is idempotent, so a half-applied run is
// simply applied again.
func EnsureBootstrapped(ctx context.Context, conn *pgx.Conn, embedDim int, logger *slog.Logger) error {
	if embedDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", embedDim)
	}

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := conn.QueryRow(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'contexta_meta'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if !exists {
		return runBootstrap(ctxBoot, conn, embedDim, logger)
	}

	var hasVersion bool
	err = conn.QueryRow(ctxBoot, `SELECT EXISTS (SELECT 1 FROM contexta_meta WHERE version = $1)`, schemaVersion).
		Scan(&hasVersion)
	if err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, conn, embedDim, logger)
	}

	logger.Debug("schema already bootstrapped", "version", schemaVersion)
	return nil
}

func runBootstrap(ctx context.Context, conn *pgx.Conn, embedDim int, logger *slog.Logger) error {
	script, err := bootstrapScript(embedDim)
	if err != nil {
		return err
	}

	logger.Info("bootstrapping schema", "version", schemaVersion, "embed_dim", embedDim)
	// No arguments, so pgx sends the multi-statement script over the simple protocol.
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("exec bootstrap: %w", err)
		}
		return nil
	})
}

func bootstrapScript(embedDim int) (string, error) {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(sqlBytes), "{{EMBED_DIM}}", strconv.Itoa(embedDim)), nil
}
