// Package migrate applies the embedded SQL migrations on server start.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/migrations"
)

// Up brings the schema at dsn to the latest version and logs each applied step.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	results, err := p.Up(ctx)
	for _, r := range results {
		if r.Source == nil {
			continue
		}
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("dur", r.Duration),
		)
	}
	if err != nil {
		return err
	}

	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	log.Info("schema ready", zap.Int64("version", v), zap.Int("applied", len(results)))
	return nil
}
