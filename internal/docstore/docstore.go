// Package docstore: хранилище документов (коллекция → id → поля) с атомарными
// транзакциями и оптимистичной конкуренцией.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict: документ, прочитанный в транзакции, изменился до коммита.
	ErrConflict = errors.New("docstore: concurrent modification")
	// ErrContention: попытки повтора транзакции исчерпаны.
	ErrContention = errors.New("docstore: too much contention")
)

type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

type Ref struct {
	Collection string
	ID         string
}

func NewRef(collection, id string) Ref { return Ref{Collection: collection, ID: id} }

func (r Ref) String() string { return r.Collection + "/" + r.ID }

type serverTimestamp struct{}

// ServerTimestamp в значении поля заменяется временем коммита.
var ServerTimestamp any = serverTimestamp{}

// Receipt: итог успешного коммита.
type Receipt struct {
	CommitTime time.Time
	Attempts   int
}

type Txn interface {
	// Read возвращает документ и запоминает его версию для проверки при коммите.
	Read(ctx context.Context, ref Ref) (Document, bool, error)
	// Write сливает поля в документ (создаёт, если его нет). Применяется при коммите.
	Write(ref Ref, fields Fields) error
	// Append добавляет новый документ с id, выданным хранилищем.
	Append(collection string, fields Fields) (Ref, error)
}

type Store interface {
	FetchAll(ctx context.Context, collection string) ([]Document, error)
	// RunAtomic выполняет fn целиком или никак. При конфликте fn вызывается повторно,
	// поэтому она не должна иметь побочных эффектов вне txn.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, txn Txn) error) (Receipt, error)
	// Put записывает документ вне транзакции (сидинг, админка).
	Put(ctx context.Context, ref Ref, fields Fields) error
}

func cloneFields(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func merge(dst, src Fields) Fields {
	out := cloneFields(dst)
	for k, v := range src {
		out[k] = v
	}
	return out
}

// resolveTimestamps подставляет время коммита вместо ServerTimestamp.
func resolveTimestamps(f Fields, now time.Time) Fields {
	out := cloneFields(f)
	for k, v := range out {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
		}
	}
	return out
}
