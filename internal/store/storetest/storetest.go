// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/store"
)

// Run executes the contract against stores produced by open. Each subtest
// gets a fresh store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"MemberTypesSeeded", testMemberTypesSeeded},
		{"UserLifecycle", testUserLifecycle},
		{"FindOmitsMissing", testFindOmitsMissing},
		{"ProfileLifecycle", testProfileLifecycle},
		{"ProfileReferences", testProfileReferences},
		{"PostLifecycle", testPostLifecycle},
		{"Subscriptions", testSubscriptions},
		{"DeleteUserCascades", testDeleteUserCascades},
		{"NotFound", testNotFound},
		{"EmptyFinds", testEmptyFinds},
		{"Seed", testSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := open(t)
			t.Cleanup(func() { st.Close() })
			tt.fn(t, st)
		})
	}
}

func testMemberTypesSeeded(t *testing.T, st store.Store) {
	ctx := context.Background()
	got, err := st.ListMemberTypes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, store.DefaultMemberTypes(), got)

	found, err := st.FindMemberTypes(ctx, []store.MemberTypeID{store.MemberTypeBusiness, "GOLD"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, 7.7, found[0].Discount)
	require.Equal(t, 100, found[0].PostsLimitPerMonth)
}

func testUserLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	u, err := st.CreateUser(ctx, store.CreateUserInput{Name: "ada", Balance: 10.5})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.Empty(t, u.SubscribedTo)

	name := "grace"
	changed, err := st.UpdateUser(ctx, u.ID, store.ChangeUserInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "grace", changed.Name)
	require.Equal(t, 10.5, changed.Balance)

	found, err := st.FindUsers(ctx, []uuid.UUID{u.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "grace", found[0].Name)

	all, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, st.DeleteUser(ctx, u.ID))
	all, err = st.ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func testFindOmitsMissing(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustUser(t, st, "a")
	b := mustUser(t, st, "b")

	found, err := st.FindUsers(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID, a.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, userIDs(found))
}

func testProfileLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "ada")
	p, err := st.CreateProfile(ctx, store.CreateProfileInput{
		IsMale: false, YearOfBirth: 1990, UserID: u.ID, MemberTypeID: store.MemberTypeBasic,
	})
	require.NoError(t, err)

	byUser, err := st.FindProfilesByUsers(ctx, []uuid.UUID{u.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	require.Equal(t, p.ID, byUser[0].ID)

	tier := store.MemberTypeBusiness
	year := 1991
	changed, err := st.UpdateProfile(ctx, p.ID, store.ChangeProfileInput{MemberTypeID: &tier, YearOfBirth: &year})
	require.NoError(t, err)
	require.Equal(t, store.MemberTypeBusiness, changed.MemberTypeID)
	require.Equal(t, 1991, changed.YearOfBirth)
	require.Equal(t, u.ID, changed.UserID)

	byID, err := st.FindProfiles(ctx, []uuid.UUID{p.ID})
	require.NoError(t, err)
	require.Equal(t, []*store.Profile{changed}, byID)

	require.NoError(t, st.DeleteProfile(ctx, p.ID))
	byUser, err = st.FindProfilesByUsers(ctx, []uuid.UUID{u.ID})
	require.NoError(t, err)
	require.Empty(t, byUser)
}

func testProfileReferences(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "ada")

	_, err := st.CreateProfile(ctx, store.CreateProfileInput{UserID: uuid.New(), MemberTypeID: store.MemberTypeBasic})
	require.ErrorIs(t, err, store.ErrInvalidReference)

	_, err = st.CreateProfile(ctx, store.CreateProfileInput{UserID: u.ID, MemberTypeID: "GOLD"})
	require.ErrorIs(t, err, store.ErrInvalidReference)

	p, err := st.CreateProfile(ctx, store.CreateProfileInput{UserID: u.ID, MemberTypeID: store.MemberTypeBasic})
	require.NoError(t, err)

	_, err = st.CreateProfile(ctx, store.CreateProfileInput{UserID: u.ID, MemberTypeID: store.MemberTypeBasic})
	require.ErrorIs(t, err, store.ErrConflict)

	gold := store.MemberTypeID("GOLD")
	_, err = st.UpdateProfile(ctx, p.ID, store.ChangeProfileInput{MemberTypeID: &gold})
	require.ErrorIs(t, err, store.ErrInvalidReference)
}

func testPostLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustUser(t, st, "a")
	b := mustUser(t, st, "b")

	p1 := mustPost(t, st, a.ID, "one")
	p2 := mustPost(t, st, a.ID, "two")
	p3 := mustPost(t, st, b.ID, "three")

	byAuthor, err := st.FindPostsByAuthors(ctx, []uuid.UUID{a.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{p1.ID, p2.ID}, postIDs(byAuthor))

	both, err := st.FindPostsByAuthors(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{p1.ID, p2.ID, p3.ID}, postIDs(both))

	content := "edited"
	changed, err := st.UpdatePost(ctx, p1.ID, store.ChangePostInput{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "one", changed.Title)
	require.Equal(t, "edited", changed.Content)
	require.Equal(t, a.ID, changed.AuthorID)

	require.NoError(t, st.DeletePost(ctx, p2.ID))
	all, err := st.ListPosts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{p1.ID, p3.ID}, postIDs(all))

	_, err = st.CreatePost(ctx, store.CreatePostInput{Title: "x", AuthorID: uuid.New()})
	require.ErrorIs(t, err, store.ErrInvalidReference)
}

func testSubscriptions(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustUser(t, st, "a")
	b := mustUser(t, st, "b")
	c := mustUser(t, st, "c")

	require.NoError(t, st.Subscribe(ctx, a.ID, b.ID))
	require.NoError(t, st.Subscribe(ctx, a.ID, c.ID))
	require.NoError(t, st.Subscribe(ctx, c.ID, b.ID))
	require.ErrorIs(t, st.Subscribe(ctx, a.ID, b.ID), store.ErrConflict)
	require.ErrorIs(t, st.Subscribe(ctx, a.ID, uuid.New()), store.ErrInvalidReference)

	users, err := st.FindUsers(ctx, []uuid.UUID{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	byID := map[uuid.UUID]*store.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	require.ElementsMatch(t, []uuid.UUID{b.ID, c.ID}, byID[a.ID].SubscribedTo)
	require.Empty(t, byID[a.ID].Subscribers)
	require.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, byID[b.ID].Subscribers)
	require.ElementsMatch(t, []uuid.UUID{b.ID}, byID[c.ID].SubscribedTo)
	require.ElementsMatch(t, []uuid.UUID{a.ID}, byID[c.ID].Subscribers)

	require.NoError(t, st.Unsubscribe(ctx, a.ID, b.ID))
	require.ErrorIs(t, st.Unsubscribe(ctx, a.ID, b.ID), store.ErrNotFound)

	users, err = st.FindUsers(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{c.ID}, users[0].Subscribers)
}

func testDeleteUserCascades(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustUser(t, st, "a")
	b := mustUser(t, st, "b")
	_, err := st.CreateProfile(ctx, store.CreateProfileInput{UserID: a.ID, MemberTypeID: store.MemberTypeBasic})
	require.NoError(t, err)
	mustPost(t, st, a.ID, "gone")
	keep := mustPost(t, st, b.ID, "kept")
	require.NoError(t, st.Subscribe(ctx, b.ID, a.ID))
	require.NoError(t, st.Subscribe(ctx, a.ID, b.ID))

	require.NoError(t, st.DeleteUser(ctx, a.ID))

	profiles, err := st.ListProfiles(ctx)
	require.NoError(t, err)
	require.Empty(t, profiles)

	posts, err := st.ListPosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{keep.ID}, postIDs(posts))

	users, err := st.FindUsers(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)
	require.Empty(t, users[0].SubscribedTo)
	require.Empty(t, users[0].Subscribers)
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	missing := uuid.New()
	name := "x"

	_, err := st.UpdateUser(ctx, missing, store.ChangeUserInput{Name: &name})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.DeleteUser(ctx, missing), store.ErrNotFound)

	_, err = st.UpdateProfile(ctx, missing, store.ChangeProfileInput{})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.DeleteProfile(ctx, missing), store.ErrNotFound)

	_, err = st.UpdatePost(ctx, missing, store.ChangePostInput{Title: &name})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.DeletePost(ctx, missing), store.ErrNotFound)
}

func testEmptyFinds(t *testing.T, st store.Store) {
	ctx := context.Background()
	users, err := st.FindUsers(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, users)
	posts, err := st.FindPostsByAuthors(ctx, []uuid.UUID{})
	require.NoError(t, err)
	require.Empty(t, posts)
	profiles, err := st.FindProfilesByUsers(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, profiles)
	types, err := st.FindMemberTypes(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, types)
}

const seedDoc = `
users:
  - name: ann
    balance: 10
    profile: {yearOfBirth: 1990, memberType: BUSINESS}
    posts:
      - {title: hello, content: first}
    subscribedTo: [bob]
  - name: bob
    profile: {isMale: true, yearOfBirth: 1985}
`

func testSeed(t *testing.T, st store.Store) {
	ctx := context.Background()
	data, err := store.DecodeSeed(strings.NewReader(seedDoc))
	require.NoError(t, err)
	ids, err := store.Seed(ctx, st, data)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	users, err := st.FindUsers(ctx, []uuid.UUID{ids["ann"]})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 10.0, users[0].Balance)
	require.Equal(t, []uuid.UUID{ids["bob"]}, users[0].SubscribedTo)

	profiles, err := st.FindProfilesByUsers(ctx, []uuid.UUID{ids["ann"], ids["bob"]})
	require.NoError(t, err)
	byUser := map[uuid.UUID]*store.Profile{}
	for _, p := range profiles {
		byUser[p.UserID] = p
	}
	require.Equal(t, store.MemberTypeBusiness, byUser[ids["ann"]].MemberTypeID)
	require.Equal(t, store.MemberTypeBasic, byUser[ids["bob"]].MemberTypeID)
	require.True(t, byUser[ids["bob"]].IsMale)

	posts, err := st.FindPostsByAuthors(ctx, []uuid.UUID{ids["ann"]})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "hello", posts[0].Title)

	_, err = store.Seed(ctx, st, &store.SeedData{Users: []store.SeedUser{{Name: "cat", SubscribedTo: []string{"dan"}}}})
	require.ErrorContains(t, err, `subscribes to unknown user "dan"`)

	_, err = store.DecodeSeed(strings.NewReader("users:\n  - nam: typo\n"))
	require.Error(t, err)
}

func mustUser(t *testing.T, st store.Store, name string) *store.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), store.CreateUserInput{Name: name})
	require.NoError(t, err)
	return u
}

func mustPost(t *testing.T, st store.Store, author uuid.UUID, title string) *store.Post {
	t.Helper()
	p, err := st.CreatePost(context.Background(), store.CreatePostInput{Title: title, Content: title, AuthorID: author})
	require.NoError(t, err)
	return p
}

func userIDs(users []*store.User) []uuid.UUID {
	out := make([]uuid.UUID, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func postIDs(posts []*store.Post) []uuid.UUID {
	out := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
