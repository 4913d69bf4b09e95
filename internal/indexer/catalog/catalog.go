// Package catalog mirrors the committed document table into PostgreSQL so
// that reporting tools can query what is indexed without opening the index.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS indexed_documents (
	doc_id        TEXT PRIMARY KEY,
	locator       TEXT NOT NULL,
	doctype       TEXT NOT NULL,
	txttype       TEXT NOT NULL,
	index_version BIGINT NOT NULL,
	indexed_at    TIMESTAMPTZ NOT NULL
)`

const upsertDocument = `
INSERT INTO indexed_documents (doc_id, locator, doctype, txttype, index_version, indexed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (doc_id) DO UPDATE SET
	locator = EXCLUDED.locator,
	doctype = EXCLUDED.doctype,
	txttype = EXCLUDED.txttype,
	index_version = EXCLUDED.index_version,
	indexed_at = EXCLUDED.indexed_at`

type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Record upserts docs as belonging to the given snapshot version in a
// single transaction.
func (c *Catalog) Record(ctx context.Context, version uint64, docs []index.Document) error {
	now := time.Now().UTC()
	err := c.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertDocument)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, rowValues(d, version, now)...); err != nil {
				return fmt.Errorf("recording %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("catalog updated", "version", version, "docs", len(docs))
	return nil
}

// Count returns the number of catalogued documents.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexed_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting catalog rows: %w", err)
	}
	return n, nil
}

func rowValues(d index.Document, version uint64, at time.Time) []any {
	return []any{
		d.ID,
		d.Locator,
		field(d, corpus.FieldDocType),
		field(d, corpus.FieldTxtType),
		int64(version),
		at,
	}
}

func field(d index.Document, name string) string {
	if v, ok := d.Fields[name]; ok && v != "" {
		return v
	}
	return corpus.MissingField
}
