package storetest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/store"
)

// Counting wraps a Store and records the key count of every bulk read.
// Reads can be made to fail with Fail. Writes pass through unrecorded.
type Counting struct {
	store.Store

	mu    sync.Mutex
	calls map[string][]int
	fail  map[string]error
}

func NewCounting(st store.Store) *Counting {
	return &Counting{Store: st, calls: map[string][]int{}, fail: map[string]error{}}
}

// Fail makes every later call of the named read return err.
func (c *Counting) Fail(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[name] = err
}

// Calls returns the key counts recorded for the named read, one per call.
// List reads record 0.
func (c *Counting) Calls(name string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.calls[name]...)
}

// Total returns the number of recorded reads across all names.
func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, calls := range c.calls {
		n += len(calls)
	}
	return n
}

func (c *Counting) record(name string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name] = append(c.calls[name], n)
	return c.fail[name]
}

func (c *Counting) ListMemberTypes(ctx context.Context) ([]*store.MemberType, error) {
	if err := c.record("listMemberTypes", 0); err != nil {
		return nil, err
	}
	return c.Store.ListMemberTypes(ctx)
}

func (c *Counting) FindMemberTypes(ctx context.Context, ids []store.MemberTypeID) ([]*store.MemberType, error) {
	if err := c.record("memberTypes", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindMemberTypes(ctx, ids)
}

func (c *Counting) ListUsers(ctx context.Context) ([]*store.User, error) {
	if err := c.record("listUsers", 0); err != nil {
		return nil, err
	}
	return c.Store.ListUsers(ctx)
}

func (c *Counting) FindUsers(ctx context.Context, ids []uuid.UUID) ([]*store.User, error) {
	if err := c.record("users", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindUsers(ctx, ids)
}

func (c *Counting) ListProfiles(ctx context.Context) ([]*store.Profile, error) {
	if err := c.record("listProfiles", 0); err != nil {
		return nil, err
	}
	return c.Store.ListProfiles(ctx)
}

func (c *Counting) FindProfiles(ctx context.Context, ids []uuid.UUID) ([]*store.Profile, error) {
	if err := c.record("profiles", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindProfiles(ctx, ids)
}

func (c *Counting) FindProfilesByUsers(ctx context.Context, ids []uuid.UUID) ([]*store.Profile, error) {
	if err := c.record("profilesByUser", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindProfilesByUsers(ctx, ids)
}

func (c *Counting) ListPosts(ctx context.Context) ([]*store.Post, error) {
	if err := c.record("listPosts", 0); err != nil {
		return nil, err
	}
	return c.Store.ListPosts(ctx)
}

func (c *Counting) FindPosts(ctx context.Context, ids []uuid.UUID) ([]*store.Post, error) {
	if err := c.record("posts", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindPosts(ctx, ids)
}

func (c *Counting) FindPostsByAuthors(ctx context.Context, ids []uuid.UUID) ([]*store.Post, error) {
	if err := c.record("postsByAuthor", len(ids)); err != nil {
		return nil, err
	}
	return c.Store.FindPostsByAuthors(ctx, ids)
}
