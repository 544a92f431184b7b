package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*Postgres)(nil)

// Postgres хранит документы в таблице documents (jsonb).
// Транзакции: SERIALIZABLE плюс проверка версии при записи.
type Postgres struct {
	pool  *pgxpool.Pool
	retry RetryConfig
}

func NewPostgres(pool *pgxpool.Pool, cfg RetryConfig) *Postgres {
	return &Postgres{pool: pool, retry: cfg}
}

func (s *Postgres) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, fields
		FROM documents
		WHERE collection = $1
		ORDER BY id
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		f, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, Document{ID: id, Fields: f})
	}
	return out, rows.Err()
}

func (s *Postgres) Put(ctx context.Context, ref Ref, fields Fields) error {
	raw, err := encodeFields(resolveTimestamps(fields, time.Now().UTC()))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, fields, version)
		VALUES ($1, $2, $3::jsonb, 1)
		ON CONFLICT (collection, id)
		DO UPDATE SET fields = EXCLUDED.fields,
		              version = documents.version + 1,
		              updated_at = now()
	`, ref.Collection, ref.ID, raw)
	return err
}

func (s *Postgres) RunAtomic(ctx context.Context, fn func(ctx context.Context, txn Txn) error) (Receipt, error) {
	var receipt Receipt
	n, err := runWithRetry(ctx, s.retry, func(ctx context.Context) error {
		at, err := s.attempt(ctx, fn)
		if err != nil {
			return classify(err)
		}
		receipt.CommitTime = at
		return nil
	})
	receipt.Attempts = n
	if err != nil {
		return Receipt{Attempts: n}, err
	}
	return receipt, nil
}

func (s *Postgres) attempt(ctx context.Context, fn func(ctx context.Context, txn Txn) error) (time.Time, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn := &pgTxn{tx: tx, reads: make(map[Ref]int64)}
	if err := fn(ctx, txn); err != nil {
		return time.Time{}, err
	}

	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Time{}, err
	}
	now = now.UTC()

	for _, w := range txn.writes {
		if err := txn.flushWrite(ctx, w, now); err != nil {
			return time.Time{}, err
		}
	}
	for _, a := range txn.appends {
		raw, err := encodeFields(resolveTimestamps(a.fields, now))
		if err != nil {
			return time.Time{}, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, fields, version)
			VALUES ($1, $2, $3::jsonb, 1)
		`, a.ref.Collection, a.ref.ID, raw); err != nil {
			return time.Time{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

type pgTxn struct {
	tx      pgx.Tx
	reads   map[Ref]int64 // 0: прочитан как отсутствующий
	writes  []pendingWrite
	appends []pendingWrite
}

func (t *pgTxn) Read(ctx context.Context, ref Ref) (Document, bool, error) {
	if len(t.writes) > 0 || len(t.appends) > 0 {
		return Document{}, false, errReadAfterWrite
	}
	var (
		raw     []byte
		version int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT fields, version
		FROM documents
		WHERE collection = $1 AND id = $2
	`, ref.Collection, ref.ID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		t.reads[ref] = 0
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	f, err := decodeFields(raw)
	if err != nil {
		return Document{}, false, fmt.Errorf("decode %s: %w", ref, err)
	}
	t.reads[ref] = version
	return Document{ID: ref.ID, Fields: f}, true, nil
}

func (t *pgTxn) Write(ref Ref, fields Fields) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: invalid ref %q", ref)
	}
	t.writes = append(t.writes, pendingWrite{ref: ref, fields: cloneFields(fields)})
	return nil
}

func (t *pgTxn) Append(collection string, fields Fields) (Ref, error) {
	if collection == "" {
		return Ref{}, errors.New("docstore: empty collection")
	}
	ref := NewRef(collection, uuid.NewString())
	t.appends = append(t.appends, pendingWrite{ref: ref, fields: cloneFields(fields)})
	return ref, nil
}

func (t *pgTxn) flushWrite(ctx context.Context, w pendingWrite, now time.Time) error {
	raw, err := encodeFields(resolveTimestamps(w.fields, now))
	if err != nil {
		return err
	}

	seen, wasRead := t.reads[w.ref]
	switch {
	case wasRead && seen > 0:
		tag, err := t.tx.Exec(ctx, `
			UPDATE documents
			SET fields = fields || $3::jsonb,
			    version = version + 1,
			    updated_at = now()
			WHERE collection = $1 AND id = $2 AND version = $4
		`, w.ref.Collection, w.ref.ID, raw, seen)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrConflict, w.ref)
		}
		t.reads[w.ref] = seen + 1
	case wasRead:
		// читали как отсутствующий: создаём, только если никто не успел раньше
		tag, err := t.tx.Exec(ctx, `
			INSERT INTO documents (collection, id, fields, version)
			VALUES ($1, $2, $3::jsonb, 1)
			ON CONFLICT (collection, id) DO NOTHING
		`, w.ref.Collection, w.ref.ID, raw)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrConflict, w.ref)
		}
		t.reads[w.ref] = 1
	default:
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO documents (collection, id, fields, version)
			VALUES ($1, $2, $3::jsonb, 1)
			ON CONFLICT (collection, id)
			DO UPDATE SET fields = documents.fields || EXCLUDED.fields,
			              version = documents.version + 1,
			              updated_at = now()
		`, w.ref.Collection, w.ref.ID, raw); err != nil {
			return err
		}
	}
	return nil
}

// classify переводит ошибки сериализации Postgres в ErrConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}

func encodeFields(f Fields) (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFields(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}
