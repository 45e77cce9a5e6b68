package resolvers

import "github.com/hanpama/membergraph/internal/store"

// registerFields installs the accessors for every physical field.
func registerFields(reg *Registry) {
	reg.Access("Member", "id", accessor(func(m *store.MemberType) any { return m.ID })).
		Access("Member", "discount", accessor(func(m *store.MemberType) any { return m.Discount })).
		Access("Member", "postsLimitPerMonth", accessor(func(m *store.MemberType) any { return m.PostsLimitPerMonth }))

	reg.Access("User", "id", accessor(func(u *store.User) any { return u.ID })).
		Access("User", "name", accessor(func(u *store.User) any { return u.Name })).
		Access("User", "balance", accessor(func(u *store.User) any { return u.Balance }))

	reg.Access("Profile", "id", accessor(func(p *store.Profile) any { return p.ID })).
		Access("Profile", "isMale", accessor(func(p *store.Profile) any { return p.IsMale })).
		Access("Profile", "yearOfBirth", accessor(func(p *store.Profile) any { return p.YearOfBirth }))

	reg.Access("Post", "id", accessor(func(p *store.Post) any { return p.ID })).
		Access("Post", "title", accessor(func(p *store.Post) any { return p.Title })).
		Access("Post", "content", accessor(func(p *store.Post) any { return p.Content }))
}
