package materials

import (
	"context"

	"github.com/Spok95/makerspace/internal/docstore"
)

type Repo struct{ store docstore.Store }

func NewRepo(store docstore.Store) *Repo { return &Repo{store: store} }

// Save перезаписывает документ материала целиком (сидинг и админка).
func (r *Repo) Save(ctx context.Context, m Material) error {
	return r.store.Put(ctx, m.Ref(), m.Fields())
}

// List возвращает разобранные материалы и документы, которые разобрать не удалось.
func (r *Repo) List(ctx context.Context) ([]Material, []error, error) {
	docs, err := r.store.FetchAll(ctx, Collection)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Material, 0, len(docs))
	var skipped []error
	for _, d := range docs {
		m, err := FromDocument(d)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, m)
	}
	return out, skipped, nil
}
