package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/markdave123-py/contexta/internal/config"
	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

// DatabaseClient implements core.DbClient on Postgres + pgvector. Each call
// leases one pooled connection for its own duration.
type DatabaseClient struct {
	pool   *Pool[*pgx.Conn]
	logger *slog.Logger
}

var _ core.DbClient = (*DatabaseClient)(nil)

// NewDatabaseClient bootstraps the schema over a one-off connection and then
// opens the pool. The vector type is registered on every pooled connection,
// which requires the extension to exist first.
func NewDatabaseClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is empty", core.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "db")

	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	bootConn, err := pgx.Connect(bootCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", core.ErrConnection, err)
	}
	err = EnsureBootstrapped(ctx, bootConn, cfg.EmbedDim, logger)
	_ = bootConn.Close(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: bootstrap: %w", core.ErrDatabase, err)
	}

	pool, err := NewPool(ctx, pgxDialer(dsn), PoolConfig{
		MinConns:       int32(cfg.DBMinConns),
		MaxConns:       int32(cfg.DBMaxConns),
		AcquireTimeout: cfg.DBAcquireTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("database pool ready", "min", cfg.DBMinConns, "max", cfg.DBMaxConns)

	return &DatabaseClient{pool: pool, logger: logger}, nil
}

// buildDSN appends certificate verification params when a root cert is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("%w: ssl cert not accessible at %q: %w", core.ErrValidation, sslCertPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid DATABASE_URL: %w", core.ErrValidation, err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func pgxDialer(dsn string) Dialer[*pgx.Conn] {
	return func(ctx context.Context) (*pgx.Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("register vector type: %w", err)
		}
		return conn, nil
	}
}

// withConn leases a connection for fn. Any failure other than "no rows"
// discards the connection, since its session state is no longer known.
func (c *DatabaseClient) withConn(ctx context.Context, op string, fn func(conn *pgx.Conn) error) error {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(lease.Value())
	switch {
	case err == nil:
		lease.Release(false)
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		lease.Release(false)
		return fmt.Errorf("%w: %s", core.ErrNotFound, op)
	default:
		lease.Release(true)
		c.logger.Error("query failed", "op", op, "err", err)
		return fmt.Errorf("%w: %s: %w", core.ErrDatabase, op, err)
	}
}

// Stat exposes pool occupancy for health reporting.
func (c *DatabaseClient) Stat() PoolStat {
	return c.pool.Stat()
}

func (c *DatabaseClient) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// CreateDocument inserts the document row in its own transaction. A missing
// ID is generated; CreatedAt is filled from the database.
func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", core.ErrValidation)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return fmt.Errorf("%w: document id %q: %w", core.ErrValidation, doc.ID, err)
	}

	const q = `
		INSERT INTO documents (id, user_id, title, file_name, file_path, source_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return c.withConn(ctx, "insert document", func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, q,
			id, doc.UserID, doc.Title, doc.FileName, doc.StorageURL, doc.SourceType,
		).Scan(&doc.CreatedAt)
	})
}

const documentColumns = `id::text, user_id, title, file_name, file_path, source_type, created_at`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.FileName, &d.StorageURL, &d.SourceType, &d.CreatedAt)
	return d, err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}

	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var d models.Document
	err = c.withConn(ctx, "get document "+id, func(conn *pgx.Conn) error {
		var err error
		d, err = scanDocument(conn.QueryRow(ctx, q, docID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`
	return c.listDocuments(ctx, "list documents by user", q, userID)
}

// ListDocumentsWithoutChunks returns documents whose ingestion stopped after
// the document row was committed.
func (c *DatabaseClient) ListDocumentsWithoutChunks(ctx context.Context) ([]models.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents d
		WHERE NOT EXISTS (SELECT 1 FROM document_chunks c WHERE c.document_id = d.id)
		ORDER BY created_at DESC
	`
	return c.listDocuments(ctx, "list documents without chunks", q)
}

func (c *DatabaseClient) listDocuments(ctx context.Context, op, q string, args ...any) ([]models.Document, error) {
	out := []models.Document{}
	err := c.withConn(ctx, op, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			d, err := scanDocument(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertDocumentChunks copies all chunks inside one transaction; either every
// row lands or none does.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]any, len(chunks))
	for i := range chunks {
		ch := &chunks[i]
		docID, err := uuid.Parse(ch.DocumentID)
		if err != nil {
			return fmt.Errorf("%w: chunk %d document id: %w", core.ErrValidation, ch.Index, err)
		}
		rows[i] = []any{docID, ch.Index, ch.Text, pgvector.NewVector(ch.Embedding)}
	}

	return c.withConn(ctx, "insert chunks", func(conn *pgx.Conn) error {
		return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			n, err := tx.CopyFrom(ctx,
				pgx.Identifier{"document_chunks"},
				[]string{"document_id", "chunk_index", "chunk_text", "embedding"},
				pgx.CopyFromRows(rows),
			)
			if err != nil {
				return err
			}
			if int(n) != len(rows) {
				return fmt.Errorf("copied %d of %d chunks", n, len(rows))
			}
			return nil
		})
	})
}

// SearchChunks returns the topK chunks nearest to queryVec by cosine distance,
// most similar first.
func (c *DatabaseClient) SearchChunks(ctx context.Context, queryVec []float32, topK int, filters models.Filters) ([]models.Candidate, error) {
	out := []models.Candidate{}
	if topK <= 0 {
		return out, nil
	}

	where, filterArgs, err := buildFilterClause(filters, 3)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT c.chunk_text, c.document_id::text, c.chunk_index, c.embedding,
		       1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		%s
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`, where)
	args := append([]any{pgvector.NewVector(queryVec), topK}, filterArgs...)

	err = c.withConn(ctx, "search chunks", func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				cand models.Candidate
				emb  pgvector.Vector
			)
			if err := rows.Scan(&cand.Text, &cand.DocumentID, &cand.ChunkIndex, &emb, &cand.Similarity); err != nil {
				return err
			}
			cand.Embedding = emb.Slice()
			out = append(out, cand)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
