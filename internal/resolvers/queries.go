package resolvers

import (
	"context"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/loaders"
	"github.com/hanpama/membergraph/internal/store"
)

func (r *Runtime) registerQueries() {
	r.reg.Resolve(queryType, "memberTypes", r.memberTypes).
		Resolve(queryType, "memberType", r.memberType).
		Resolve(queryType, "users", r.users).
		Resolve(queryType, "user", r.user).
		Resolve(queryType, "posts", r.posts).
		Resolve(queryType, "post", r.post).
		Resolve(queryType, "profiles", r.profiles).
		Resolve(queryType, "profile", r.profile)
}

func memberTypeKey(mt *store.MemberType) store.MemberTypeID { return mt.ID }
func userKey(u *store.User) uuid.UUID                     { return u.ID }
func postKey(p *store.Post) uuid.UUID                     { return p.ID }
func profileKey(p *store.Profile) uuid.UUID               { return p.ID }
func profileUserKey(p *store.Profile) uuid.UUID           { return p.UserID }

// List queries read the whole table and prime the point loaders, so nested
// lookups of the same rows cost nothing.

func (r *Runtime) memberTypes(ctx context.Context, _ any, _ map[string]any) (any, error) {
	rows, err := r.store.ListMemberTypes(ctx)
	if err != nil {
		return nil, err
	}
	prime(loaders.FromContext(ctx).MemberType, rows, memberTypeKey)
	return rows, nil
}

func (r *Runtime) users(ctx context.Context, _ any, _ map[string]any) (any, error) {
	rows, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	prime(loaders.FromContext(ctx).User, rows, userKey)
	return rows, nil
}

func (r *Runtime) posts(ctx context.Context, _ any, _ map[string]any) (any, error) {
	rows, err := r.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	prime(loaders.FromContext(ctx).Post, rows, postKey)
	return rows, nil
}

func (r *Runtime) profiles(ctx context.Context, _ any, _ map[string]any) (any, error) {
	rows, err := r.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	prime(l.ProfileByID, rows, profileKey)
	prime(l.ProfileByUserID, rows, profileUserKey)
	return rows, nil
}

func (r *Runtime) memberType(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := memberTypeArg(args, "id")
	if err != nil {
		return nil, err
	}
	return await(loaders.FromContext(ctx).MemberType.Load(id)), nil
}

func (r *Runtime) user(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	return await(loaders.FromContext(ctx).User.Load(id)), nil
}

func (r *Runtime) post(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	return await(loaders.FromContext(ctx).Post.Load(id)), nil
}

func (r *Runtime) profile(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	return await(loaders.FromContext(ctx).ProfileByID.Load(id)), nil
}
