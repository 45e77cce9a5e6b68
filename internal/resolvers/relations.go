package resolvers

import (
	"context"

	"github.com/hanpama/membergraph/internal/loaders"
	"github.com/hanpama/membergraph/internal/store"
)

func (r *Runtime) registerRelations() {
	r.reg.Resolve("User", "profile", relation(func(l *loaders.Loaders, u *store.User) Deferred {
		return await(l.ProfileByUserID.Load(u.ID))
	})).
		Resolve("User", "posts", relation(func(l *loaders.Loaders, u *store.User) Deferred {
			return await(l.PostsByAuthor.Load(u.ID))
		})).
		Resolve("User", "userSubscribedTo", relation(func(l *loaders.Loaders, u *store.User) Deferred {
			return awaitFound(l.User.LoadMany(u.SubscribedTo))
		})).
		Resolve("User", "subscribedToUser", relation(func(l *loaders.Loaders, u *store.User) Deferred {
			return awaitFound(l.User.LoadMany(u.Subscribers))
		})).
		Resolve("Profile", "memberType", relation(func(l *loaders.Loaders, p *store.Profile) Deferred {
			return await(l.MemberType.Load(p.MemberTypeID))
		}))
}

// relation adapts a typed key registration into a Resolver.
func relation[T any](load func(*loaders.Loaders, T) Deferred) Resolver {
	get := accessor(func(src T) any { return src })
	return func(ctx context.Context, source any, _ map[string]any) (any, error) {
		src, err := get(source)
		if err != nil {
			return nil, err
		}
		return load(loaders.FromContext(ctx), src.(T)), nil
	}
}
