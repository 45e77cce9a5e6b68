// Package memstore is an in-memory store.Store backed by ordered B-trees.
// Rows come back in key order, not request order.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/hanpama/membergraph/internal/store"
)

// edge orders subscription pairs; the same type serves both directions.
type edge struct {
	from, to string
}

func lessEdge(a, b edge) bool {
	if a.from != b.from {
		return a.from < b.from
	}
	return a.to < b.to
}

type Store struct {
	mu sync.RWMutex

	memberTypes btree.Map[store.MemberTypeID, store.MemberType]
	users       btree.Map[string, store.User]
	profiles    btree.Map[string, store.Profile]
	posts       btree.Map[string, store.Post]

	profileByUser btree.Map[string, string]
	postsByAuthor *btree.BTreeG[edge] // author -> post
	subscriptions *btree.BTreeG[edge] // subscriber -> author
	subscribers   *btree.BTreeG[edge] // author -> subscriber

	newID func() uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces uuid.New for created rows.
func WithIDGenerator(fn func() uuid.UUID) Option { return func(s *Store) { s.newID = fn } }

// New returns a store holding the default member types.
func New(opts ...Option) *Store {
	s := &Store{
		postsByAuthor: btree.NewBTreeG(lessEdge),
		subscriptions: btree.NewBTreeG(lessEdge),
		subscribers:   btree.NewBTreeG(lessEdge),
		newID:         uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, mt := range store.DefaultMemberTypes() {
		s.memberTypes.Set(mt.ID, *mt)
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) ListMemberTypes(ctx context.Context) ([]*store.MemberType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.MemberType
	s.memberTypes.Scan(func(_ store.MemberTypeID, mt store.MemberType) bool {
		out = append(out, &mt)
		return true
	})
	return out, nil
}

func (s *Store) FindMemberTypes(ctx context.Context, ids []store.MemberTypeID) ([]*store.MemberType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[store.MemberTypeID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*store.MemberType
	s.memberTypes.Scan(func(id store.MemberTypeID, mt store.MemberType) bool {
		if want[id] {
			out = append(out, &mt)
		}
		return true
	})
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.User
	s.users.Scan(func(_ string, u store.User) bool {
		out = append(out, s.withEdges(u))
		return true
	})
	return out, nil
}

func (s *Store) FindUsers(ctx context.Context, ids []uuid.UUID) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.User
	for _, key := range sortedKeys(ids) {
		if u, ok := s.users.Get(key); ok {
			out = append(out, s.withEdges(u))
		}
	}
	return out, nil
}

func (s *Store) withEdges(u store.User) *store.User {
	key := u.ID.String()
	u.SubscribedTo = s.neighbours(s.subscriptions, key)
	u.Subscribers = s.neighbours(s.subscribers, key)
	return &u
}

func (s *Store) neighbours(idx *btree.BTreeG[edge], from string) []uuid.UUID {
	out := []uuid.UUID{}
	idx.Ascend(edge{from: from}, func(e edge) bool {
		if e.from != from {
			return false
		}
		out = append(out, uuid.MustParse(e.to))
		return true
	})
	return out
}

func (s *Store) CreateUser(ctx context.Context, in store.CreateUserInput) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := store.User{ID: s.newID(), Name: in.Name, Balance: in.Balance}
	s.users.Set(u.ID.String(), u)
	return s.withEdges(u), nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, in store.ChangeUserInput) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users.Get(id.String())
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	u = in.Apply(u)
	s.users.Set(id.String(), u)
	return s.withEdges(u), nil
}

// DeleteUser removes the user with its profile, posts and edges.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	if _, ok := s.users.Delete(key); !ok {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if pid, ok := s.profileByUser.Delete(key); ok {
		s.profiles.Delete(pid)
	}
	for _, e := range collect(s.postsByAuthor, key) {
		s.postsByAuthor.Delete(e)
		s.posts.Delete(e.to)
	}
	for _, e := range collect(s.subscriptions, key) {
		s.subscriptions.Delete(e)
		s.subscribers.Delete(edge{from: e.to, to: e.from})
	}
	for _, e := range collect(s.subscribers, key) {
		s.subscribers.Delete(e)
		s.subscriptions.Delete(edge{from: e.to, to: e.from})
	}
	return nil
}

func collect(idx *btree.BTreeG[edge], from string) []edge {
	var out []edge
	idx.Ascend(edge{from: from}, func(e edge) bool {
		if e.from != from {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

func (s *Store) Subscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, author := subscriberID.String(), authorID.String()
	if err := s.requireUsers(sub, author); err != nil {
		return err
	}
	if _, exists := s.subscriptions.Get(edge{from: sub, to: author}); exists {
		return fmt.Errorf("subscription %s -> %s: %w", subscriberID, authorID, store.ErrConflict)
	}
	s.subscriptions.Set(edge{from: sub, to: author})
	s.subscribers.Set(edge{from: author, to: sub})
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, author := subscriberID.String(), authorID.String()
	if _, ok := s.subscriptions.Delete(edge{from: sub, to: author}); !ok {
		return fmt.Errorf("subscription %s -> %s: %w", subscriberID, authorID, store.ErrNotFound)
	}
	s.subscribers.Delete(edge{from: author, to: sub})
	return nil
}

func (s *Store) requireUsers(keys ...string) error {
	for _, k := range keys {
		if _, ok := s.users.Get(k); !ok {
			return fmt.Errorf("user %s: %w", k, store.ErrInvalidReference)
		}
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Profile
	s.profiles.Scan(func(_ string, p store.Profile) bool {
		out = append(out, &p)
		return true
	})
	return out, nil
}

func (s *Store) FindProfiles(ctx context.Context, ids []uuid.UUID) ([]*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Profile
	for _, key := range sortedKeys(ids) {
		if p, ok := s.profiles.Get(key); ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) FindProfilesByUsers(ctx context.Context, userIDs []uuid.UUID) ([]*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Profile
	for _, key := range sortedKeys(userIDs) {
		pid, ok := s.profileByUser.Get(key)
		if !ok {
			continue
		}
		if p, ok := s.profiles.Get(pid); ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) CreateProfile(ctx context.Context, in store.CreateProfileInput) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userKey := in.UserID.String()
	if err := s.requireUsers(userKey); err != nil {
		return nil, err
	}
	if _, ok := s.memberTypes.Get(in.MemberTypeID); !ok {
		return nil, fmt.Errorf("member type %s: %w", in.MemberTypeID, store.ErrInvalidReference)
	}
	if _, exists := s.profileByUser.Get(userKey); exists {
		return nil, fmt.Errorf("profile for user %s: %w", in.UserID, store.ErrConflict)
	}
	p := store.Profile{
		ID:           s.newID(),
		IsMale:       in.IsMale,
		YearOfBirth:  in.YearOfBirth,
		UserID:       in.UserID,
		MemberTypeID: in.MemberTypeID,
	}
	s.profiles.Set(p.ID.String(), p)
	s.profileByUser.Set(userKey, p.ID.String())
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, in store.ChangeProfileInput) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles.Get(id.String())
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	p = in.Apply(p)
	if _, ok := s.memberTypes.Get(p.MemberTypeID); !ok {
		return nil, fmt.Errorf("member type %s: %w", p.MemberTypeID, store.ErrInvalidReference)
	}
	s.profiles.Set(id.String(), p)
	return &p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles.Delete(id.String())
	if !ok {
		return fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	s.profileByUser.Delete(p.UserID.String())
	return nil
}

func (s *Store) ListPosts(ctx context.Context) ([]*store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Post
	s.posts.Scan(func(_ string, p store.Post) bool {
		out = append(out, &p)
		return true
	})
	return out, nil
}

func (s *Store) FindPosts(ctx context.Context, ids []uuid.UUID) ([]*store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Post
	for _, key := range sortedKeys(ids) {
		if p, ok := s.posts.Get(key); ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) FindPostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]*store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Post
	for _, author := range sortedKeys(authorIDs) {
		for _, e := range collect(s.postsByAuthor, author) {
			if p, ok := s.posts.Get(e.to); ok {
				out = append(out, &p)
			}
		}
	}
	return out, nil
}

func (s *Store) CreatePost(ctx context.Context, in store.CreatePostInput) (*store.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	author := in.AuthorID.String()
	if err := s.requireUsers(author); err != nil {
		return nil, err
	}
	p := store.Post{ID: s.newID(), Title: in.Title, Content: in.Content, AuthorID: in.AuthorID}
	s.posts.Set(p.ID.String(), p)
	s.postsByAuthor.Set(edge{from: author, to: p.ID.String()})
	return &p, nil
}

func (s *Store) UpdatePost(ctx context.Context, id uuid.UUID, in store.ChangePostInput) (*store.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts.Get(id.String())
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	p = in.Apply(p)
	s.posts.Set(id.String(), p)
	return &p, nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts.Delete(id.String())
	if !ok {
		return fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	s.postsByAuthor.Delete(edge{from: p.AuthorID.String(), to: id.String()})
	return nil
}

// sortedKeys returns the distinct string forms of ids in ascending order, so
// bulk finds answer in key order regardless of how they were asked.
func sortedKeys(ids []uuid.UUID) []string {
	var set btree.Set[string]
	for _, id := range ids {
		set.Insert(id.String())
	}
	keys := make([]string, 0, set.Len())
	set.Scan(func(k string) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

var _ store.Store = (*Store)(nil)
