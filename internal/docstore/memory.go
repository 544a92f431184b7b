package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*Memory)(nil)

var errReadAfterWrite = errors.New("docstore: reads must precede writes in a transaction")

type record struct {
	fields  Fields
	version uint64 // 0: документа нет
}

// Memory: in-memory хранилище для тестов и локального запуска.
// Транзакции не держат блокировку во время fn: версии прочитанных
// документов сверяются при коммите, при расхождении fn повторяется.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]map[string]record
	retry RetryConfig
	nowFn func() time.Time
}

func NewMemory(cfg RetryConfig) *Memory {
	return &Memory{
		data:  make(map[string]map[string]record),
		retry: cfg,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени коммита.
func (s *Memory) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

func (s *Memory) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.data[collection]
	out := make([]Document, 0, len(col))
	for id, rec := range col {
		out = append(out, Document{ID: id, Fields: cloneFields(rec.fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) Put(ctx context.Context, ref Ref, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collection(ref.Collection)
	rec := col[ref.ID]
	col[ref.ID] = record{fields: resolveTimestamps(fields, s.nowFn()), version: rec.version + 1}
	return nil
}

// Get читает документ вне транзакции.
func (s *Memory) Get(ref Ref) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[ref.Collection][ref.ID]
	if !ok {
		return Document{}, false
	}
	return Document{ID: ref.ID, Fields: cloneFields(rec.fields)}, true
}

func (s *Memory) RunAtomic(ctx context.Context, fn func(ctx context.Context, txn Txn) error) (Receipt, error) {
	var receipt Receipt
	n, err := runWithRetry(ctx, s.retry, func(ctx context.Context) error {
		txn := &memTxn{store: s, reads: make(map[Ref]uint64)}
		if err := fn(ctx, txn); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		at, err := s.commit(txn)
		if err != nil {
			return err
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

func (s *Memory) collection(name string) map[string]record {
	col, ok := s.data[name]
	if !ok {
		col = make(map[string]record)
		s.data[name] = col
	}
	return col
}

func (s *Memory) commit(txn *memTxn) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, seen := range txn.reads {
		if s.data[ref.Collection][ref.ID].version != seen {
			return time.Time{}, fmt.Errorf("%w: %s", ErrConflict, ref)
		}
	}

	now := s.nowFn()
	for _, w := range txn.writes {
		col := s.collection(w.ref.Collection)
		rec := col[w.ref.ID]
		col[w.ref.ID] = record{
			fields:  merge(rec.fields, resolveTimestamps(w.fields, now)),
			version: rec.version + 1,
		}
	}
	for _, a := range txn.appends {
		s.collection(a.ref.Collection)[a.ref.ID] = record{
			fields:  resolveTimestamps(a.fields, now),
			version: 1,
		}
	}
	return now, nil
}

type pendingWrite struct {
	ref    Ref
	fields Fields
}

type memTxn struct {
	store   *Memory
	reads   map[Ref]uint64
	writes  []pendingWrite
	appends []pendingWrite
}

func (t *memTxn) Read(ctx context.Context, ref Ref) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	if len(t.writes) > 0 || len(t.appends) > 0 {
		return Document{}, false, errReadAfterWrite
	}
	t.store.mu.RLock()
	rec, ok := t.store.data[ref.Collection][ref.ID]
	t.store.mu.RUnlock()

	t.reads[ref] = rec.version
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: ref.ID, Fields: cloneFields(rec.fields)}, true, nil
}

func (t *memTxn) Write(ref Ref, fields Fields) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: invalid ref %q", ref)
	}
	t.writes = append(t.writes, pendingWrite{ref: ref, fields: cloneFields(fields)})
	return nil
}

func (t *memTxn) Append(collection string, fields Fields) (Ref, error) {
	if collection == "" {
		return Ref{}, errors.New("docstore: empty collection")
	}
	ref := NewRef(collection, uuid.NewString())
	t.appends = append(t.appends, pendingWrite{ref: ref, fields: cloneFields(fields)})
	return ref, nil
}
