package usagelog

import (
	"context"
	"fmt"
	"sort"

	"github.com/Spok95/makerspace/internal/docstore"
)

type Repo struct{ store docstore.Store }

func NewRepo(store docstore.Store) *Repo { return &Repo{store: store} }

// ListByUser: история пользователя, новые записи первыми.
func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	docs, err := r.store.FetchAll(ctx, Collection)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, d := range docs {
		if d.Fields.Text("user_id") != userID {
			continue
		}
		e, err := FromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("usage log %s: %w", d.ID, err)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
