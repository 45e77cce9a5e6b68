package loaders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/store"
	"github.com/hanpama/membergraph/internal/store/memstore"
	"github.com/hanpama/membergraph/internal/store/storetest"
)

type fixture struct {
	st    *storetest.Counting
	users []*store.User
	posts []*store.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memstore.New()
	f := &fixture{st: storetest.NewCounting(mem)}
	for _, name := range []string{"a", "b", "c"} {
		u, err := mem.CreateUser(ctx, store.CreateUserInput{Name: name})
		require.NoError(t, err)
		f.users = append(f.users, u)
	}
	for i, title := range []string{"a1", "a2", "b1"} {
		author := f.users[0]
		if i == 2 {
			author = f.users[1]
		}
		p, err := mem.CreatePost(ctx, store.CreatePostInput{Title: title, AuthorID: author.ID})
		require.NoError(t, err)
		f.posts = append(f.posts, p)
	}
	_, err := mem.CreateProfile(ctx, store.CreateProfileInput{UserID: f.users[0].ID, MemberTypeID: store.MemberTypeBusiness})
	require.NoError(t, err)
	return f
}

func TestUserLoaderAlignsAndMarksAbsent(t *testing.T) {
	f := newFixture(t)
	l := New(f.st)
	ctx := context.Background()

	missing := uuid.New()
	many := l.User.LoadMany([]uuid.UUID{f.users[2].ID, missing, f.users[0].ID})
	l.Dispatch(ctx)
	got := many.Await(ctx)

	require.Len(t, got, 3)
	require.Equal(t, "c", got[0].Value.Name)
	require.True(t, got[1].Absent())
	require.Equal(t, "a", got[2].Value.Name)
	require.Equal(t, []int{3}, f.st.Calls("users"))
}

func TestPostsByAuthorGroupsAndPrimesPosts(t *testing.T) {
	f := newFixture(t)
	l := New(f.st)
	ctx := context.Background()

	byA := l.PostsByAuthor.Load(f.users[0].ID)
	byC := l.PostsByAuthor.Load(f.users[2].ID)
	l.Dispatch(ctx)

	a := byA.Await(ctx)
	require.NoError(t, a.Err)
	require.Len(t, a.Value, 2)

	c := byC.Await(ctx)
	require.True(t, c.Found)
	require.NotNil(t, c.Value)
	require.Empty(t, c.Value)

	post := l.Post.Load(f.posts[0].ID)
	require.True(t, post.Ready())
	require.Equal(t, "a1", post.Await(ctx).Value.Title)
	require.Empty(t, f.st.Calls("posts"))
}

func TestProfileLoadersPrimeEachOther(t *testing.T) {
	f := newFixture(t)
	l := New(f.st)
	ctx := context.Background()

	byUser := l.ProfileByUserID.Load(f.users[0].ID)
	none := l.ProfileByUserID.Load(f.users[1].ID)
	l.Dispatch(ctx)

	p := byUser.Await(ctx)
	require.True(t, p.Found)
	require.True(t, none.Await(ctx).Absent())

	byID := l.ProfileByID.Load(p.Value.ID)
	require.True(t, byID.Ready())
	require.Empty(t, f.st.Calls("profiles"))

	mt := l.MemberType.Load(p.Value.MemberTypeID)
	l.Dispatch(ctx)
	require.Equal(t, 7.7, mt.Await(ctx).Value.Discount)
}

func TestDispatchRunsEveryPendingLoaderOnce(t *testing.T) {
	f := newFixture(t)
	l := New(f.st)
	ctx := context.Background()

	for _, u := range f.users {
		l.User.Load(u.ID)
		l.User.Load(u.ID)
		l.PostsByAuthor.Load(u.ID)
		l.ProfileByUserID.Load(u.ID)
	}
	require.Equal(t, 9, l.Pending())
	l.Dispatch(ctx)
	require.Zero(t, l.Pending())

	got := map[string][]int{
		"users":          f.st.Calls("users"),
		"postsByAuthor":  f.st.Calls("postsByAuthor"),
		"profilesByUser": f.st.Calls("profilesByUser"),
		"memberTypes":    f.st.Calls("memberTypes"),
	}
	want := map[string][]int{
		"users":          {3},
		"postsByAuthor":  {3},
		"profilesByUser": {3},
		"memberTypes":    nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("store calls mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreFailureFailsOnlyThatLoader(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.st.Fail("postsByAuthor", boom)
	l := New(f.st)
	ctx := context.Background()

	posts := l.PostsByAuthor.Load(f.users[0].ID)
	user := l.User.Load(f.users[0].ID)
	l.Dispatch(ctx)

	require.ErrorIs(t, posts.Await(ctx).Err, boom)
	require.NoError(t, user.Await(ctx).Err)
}

func TestOptionsApplyToEveryLoader(t *testing.T) {
	f := newFixture(t)
	l := New(f.st, dataloader.WithMaxBatch(2))
	ctx := context.Background()

	l.User.LoadMany([]uuid.UUID{f.users[0].ID, f.users[1].ID, f.users[2].ID})
	l.Dispatch(ctx)
	require.Equal(t, []int{2, 1}, f.st.Calls("users"))
	require.Equal(t, "user", l.User.Name())
}

func TestClearAllForcesRefetch(t *testing.T) {
	f := newFixture(t)
	l := New(f.st)
	ctx := context.Background()

	require.NoError(t, l.User.Load(f.users[0].ID).Await(ctx).Err)
	require.True(t, l.User.Load(f.users[0].ID).Ready())

	l.ClearAll()
	require.False(t, l.User.Load(f.users[0].ID).Ready())
	l.Dispatch(ctx)
	require.Equal(t, []int{1, 1}, f.st.Calls("users"))
}

func TestContextRoundTrip(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
	l := New(memstore.New())
	ctx := NewContext(context.Background(), l)
	require.Same(t, l, FromContext(ctx))
}

func TestAlignByKeyIgnoresUnrequestedRows(t *testing.T) {
	got := alignByKey([]int{3, 1}, []string{"1", "2", "3"}, func(s string) int { return int(s[0] - '0') })
	want := []dataloader.Result[string]{dataloader.Some("3"), dataloader.Some("1")}
	require.Equal(t, want, got)
}
