// Package loaders holds the per-request set of batch loaders over a
// store.Store. A Loaders value lives for exactly one request.
package loaders

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/store"
)

// Loaders has one loader per lookup kind.
type Loaders struct {
	MemberType      *dataloader.Loader[store.MemberTypeID, *store.MemberType]
	User            *dataloader.Loader[uuid.UUID, *store.User]
	Post            *dataloader.Loader[uuid.UUID, *store.Post]
	ProfileByID     *dataloader.Loader[uuid.UUID, *store.Profile]
	ProfileByUserID *dataloader.Loader[uuid.UUID, *store.Profile]
	PostsByAuthor   *dataloader.Loader[uuid.UUID, []*store.Post]
}

type dispatcher interface {
	Pending() int
	Dispatch(ctx context.Context)
	ClearAll()
}

// New builds a fresh set of loaders over st. opts apply to every loader.
func New(st store.Store, opts ...dataloader.Option) *Loaders {
	l := &Loaders{}
	named := func(name string) []dataloader.Option {
		return append(append([]dataloader.Option(nil), opts...), dataloader.WithName(name))
	}

	l.MemberType = dataloader.New(func(ctx context.Context, ids []store.MemberTypeID) ([]dataloader.Result[*store.MemberType], error) {
		rows, err := st.FindMemberTypes(ctx, ids)
		if err != nil {
			return nil, err
		}
		return alignByKey(ids, rows, func(mt *store.MemberType) store.MemberTypeID { return mt.ID }), nil
	}, named("memberType")...)

	l.User = dataloader.New(func(ctx context.Context, ids []uuid.UUID) ([]dataloader.Result[*store.User], error) {
		rows, err := st.FindUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		return alignByKey(ids, rows, func(u *store.User) uuid.UUID { return u.ID }), nil
	}, named("user")...)

	l.Post = dataloader.New(func(ctx context.Context, ids []uuid.UUID) ([]dataloader.Result[*store.Post], error) {
		rows, err := st.FindPosts(ctx, ids)
		if err != nil {
			return nil, err
		}
		return alignByKey(ids, rows, func(p *store.Post) uuid.UUID { return p.ID }), nil
	}, named("post")...)

	l.ProfileByID = dataloader.New(func(ctx context.Context, ids []uuid.UUID) ([]dataloader.Result[*store.Profile], error) {
		rows, err := st.FindProfiles(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			l.ProfileByUserID.Prime(p.UserID, p)
		}
		return alignByKey(ids, rows, func(p *store.Profile) uuid.UUID { return p.ID }), nil
	}, named("profileById")...)

	l.ProfileByUserID = dataloader.New(func(ctx context.Context, ids []uuid.UUID) ([]dataloader.Result[*store.Profile], error) {
		rows, err := st.FindProfilesByUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			l.ProfileByID.Prime(p.ID, p)
		}
		return alignByKey(ids, rows, func(p *store.Profile) uuid.UUID { return p.UserID }), nil
	}, named("profileByUserId")...)

	l.PostsByAuthor = dataloader.New(func(ctx context.Context, ids []uuid.UUID) ([]dataloader.Result[[]*store.Post], error) {
		rows, err := st.FindPostsByAuthors(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			l.Post.Prime(p.ID, p)
		}
		return groupByKey(ids, rows, func(p *store.Post) uuid.UUID { return p.AuthorID }), nil
	}, named("postsByAuthor")...)

	return l
}

func (l *Loaders) all() []dispatcher {
	return []dispatcher{l.MemberType, l.User, l.Post, l.ProfileByID, l.ProfileByUserID, l.PostsByAuthor}
}

// Pending returns the number of keys waiting across all loaders.
func (l *Loaders) Pending() int {
	n := 0
	for _, d := range l.all() {
		n += d.Pending()
	}
	return n
}

// ClearAll drops every cached result. Keys already waiting are unaffected.
func (l *Loaders) ClearAll() {
	for _, d := range l.all() {
		d.ClearAll()
	}
}

// Dispatch runs every loader that has pending keys concurrently and returns
// once all of their batches are complete.
func (l *Loaders) Dispatch(ctx context.Context) {
	var g errgroup.Group
	for _, d := range l.all() {
		if d.Pending() == 0 {
			continue
		}
		g.Go(func() error {
			d.Dispatch(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

type key struct{}

// NewContext returns a copy of parent carrying l.
func NewContext(parent context.Context, l *Loaders) context.Context {
	return context.WithValue(parent, key{}, l)
}

// FromContext returns the loaders stored in ctx, or nil.
func FromContext(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key{}).(*Loaders)
	return l
}

// alignByKey orders rows to match keys. Keys without a row become the
// absent-marker; rows for keys nobody asked for are ignored.
func alignByKey[K comparable, V any](keys []K, rows []V, keyOf func(V) K) []dataloader.Result[V] {
	byKey := make(map[K]V, len(rows))
	for _, r := range rows {
		byKey[keyOf(r)] = r
	}
	out := make([]dataloader.Result[V], len(keys))
	for i, k := range keys {
		if v, ok := byKey[k]; ok {
			out[i] = dataloader.Some(v)
		}
	}
	return out
}

// groupByKey collects rows per key. A key with no rows gets an empty slice,
// never absence.
func groupByKey[K comparable, V any](keys []K, rows []V, keyOf func(V) K) []dataloader.Result[[]V] {
	groups := make(map[K][]V, len(keys))
	for _, r := range rows {
		k := keyOf(r)
		groups[k] = append(groups[k], r)
	}
	out := make([]dataloader.Result[[]V], len(keys))
	for i, k := range keys {
		vs := groups[k]
		if vs == nil {
			vs = []V{}
		}
		out[i] = dataloader.Some(vs)
	}
	return out
}
