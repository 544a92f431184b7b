package machines

import (
	"context"
	"errors"
	"fmt"

	"github.com/Spok95/makerspace/internal/docstore"
)

const Collection = "machines"

var ErrMalformed = errors.New("malformed machine document")

type Machine struct {
	ID   string
	Name string
}

func (m Machine) Ref() docstore.Ref { return docstore.NewRef(Collection, m.ID) }

func (m Machine) Fields() docstore.Fields {
	return docstore.Fields{"name": m.Name}
}

func FromDocument(d docstore.Document) (Machine, error) {
	name := d.Fields.Text("name")
	if d.ID == "" || name == "" {
		return Machine{}, fmt.Errorf("%w %q: missing name", ErrMalformed, d.ID)
	}
	return Machine{ID: d.ID, Name: name}, nil
}

type Repo struct{ store docstore.Store }

func NewRepo(store docstore.Store) *Repo { return &Repo{store: store} }

func (r *Repo) Save(ctx context.Context, m Machine) error {
	return r.store.Put(ctx, m.Ref(), m.Fields())
}

func (r *Repo) List(ctx context.Context) ([]Machine, []error, error) {
	docs, err := r.store.FetchAll(ctx, Collection)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Machine, 0, len(docs))
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
