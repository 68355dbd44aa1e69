package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres implements Store on a single jsonb-documents table. Every document
// lives at a unique path; the parent column supports the child queries the
// services issue. Last-write-wins is the natural upsert semantics.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*Postgres)(nil)

// PostgresConfig holds connection settings for the document store
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// NewPostgres creates a Postgres-backed document store
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document store URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second
	poolCfg.ConnConfig.RuntimeParams = map[string]string{
		"application_name": "payroll_compliance",
		"timezone":         "UTC",
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	logger.Info("document store initialized",
		zap.Int32("max_conns", poolCfg.MaxConns))

	return &Postgres{pool: pool, logger: logger}, nil
}

func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func (p *Postgres) Get(ctx context.Context, path string, dest interface{}) error {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE path = $1`, path).Scan(&data)
	if err == pgx.ErrNoRows {
		return ErrPathNotFound{Path: path}
	}
	if err != nil {
		return fmt.Errorf("get document %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) Set(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (path, parent, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (path) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, path, parentOf(path), data)
	if err != nil {
		return fmt.Errorf("set document %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch for %s: %w", path, err)
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE documents
		SET doc = doc || $2::jsonb, updated_at = NOW()
		WHERE path = $1
	`, path, patch)
	if err != nil {
		return fmt.Errorf("update document %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPathNotFound{Path: path}
	}
	return nil
}

func (p *Postgres) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := uuid.New().String()
	if err := p.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Postgres) Remove(ctx context.Context, path string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM documents WHERE path = $1 OR path LIKE $2
	`, path, path+"/%")
	if err != nil {
		return fmt.Errorf("remove document %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, path string, opts QueryOptions) ([]Snapshot, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`SELECT path, doc FROM documents WHERE parent = $1`)
	args = append(args, path)

	if opts.OrderBy != "" {
		args = append(args, opts.OrderBy)
		orderArg := strconv.Itoa(len(args))

		if opts.StartAt != "" {
			args = append(args, opts.StartAt)
			fmt.Fprintf(&sb, ` AND doc->>$%s >= $%d`, orderArg, len(args))
		}
		if opts.EndAt != "" {
			args = append(args, opts.EndAt)
			fmt.Fprintf(&sb, ` AND doc->>$%s <= $%d`, orderArg, len(args))
		}

		// LimitToLast keeps the highest N: order descending, limit, then
		// reverse in memory to restore ascending order.
		if opts.LimitToLast > 0 {
			fmt.Fprintf(&sb, ` ORDER BY doc->>$%s DESC LIMIT %d`, orderArg, opts.LimitToLast)
		} else {
			fmt.Fprintf(&sb, ` ORDER BY doc->>$%s ASC`, orderArg)
		}
	} else if opts.LimitToLast > 0 {
		// Without an ordering field the path is the key order
		sb.WriteString(` ORDER BY path DESC LIMIT ` + strconv.Itoa(opts.LimitToLast))
	} else {
		sb.WriteString(` ORDER BY path ASC`)
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", path, err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			childPath string
			data      []byte
		)
		if err := rows.Scan(&childPath, &data); err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", path, err)
		}
		key := strings.TrimPrefix(childPath, path+"/")
		snaps = append(snaps, NewSnapshot(key, data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query children of %s: %w", path, err)
	}

	if opts.LimitToLast > 0 {
		for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
	}
	return snaps, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	p.logger.Info("document store closed")
	return nil
}
