package resolvers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/loaders"
	"github.com/hanpama/membergraph/internal/store"
)

// Mutations delegate to the store and drop the loader entries they make
// stale, so later root fields of the same request read fresh rows. Store
// errors already name the row and are returned as they are.
func (r *Runtime) registerMutations() {
	r.reg.Resolve(mutationType, "createUser", r.createUser).
		Resolve(mutationType, "createProfile", r.createProfile).
		Resolve(mutationType, "createPost", r.createPost).
		Resolve(mutationType, "changeUser", r.changeUser).
		Resolve(mutationType, "changeProfile", r.changeProfile).
		Resolve(mutationType, "changePost", r.changePost).
		Resolve(mutationType, "deleteUser", r.deleteUser).
		Resolve(mutationType, "deleteProfile", r.deleteProfile).
		Resolve(mutationType, "deletePost", r.deletePost).
		Resolve(mutationType, "subscribeTo", r.subscribeTo).
		Resolve(mutationType, "unsubscribeFrom", r.unsubscribeFrom)
}

// dto is a coerced input object. Absent and null fields read as nil.
type dto map[string]any

func dtoArg(args map[string]any) (dto, error) {
	m, ok := args["dto"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dto: expected input object, got %T", args["dto"])
	}
	return dto(m), nil
}

func (d dto) str(name string) *string {
	if v, ok := d[name].(string); ok {
		return &v
	}
	return nil
}

func (d dto) float(name string) *float64 {
	if v, ok := d[name].(float64); ok {
		return &v
	}
	return nil
}

func (d dto) integer(name string) *int {
	if v, ok := d[name].(int); ok {
		return &v
	}
	return nil
}

func (d dto) boolean(name string) *bool {
	if v, ok := d[name].(bool); ok {
		return &v
	}
	return nil
}

func (d dto) memberType(name string) (*store.MemberTypeID, error) {
	if d[name] == nil {
		return nil, nil
	}
	id, err := memberTypeArg(d, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func (r *Runtime) createUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	d, err := dtoArg(args)
	if err != nil {
		return nil, err
	}
	u, err := r.store.CreateUser(ctx, store.CreateUserInput{
		Name:    deref(d.str("name")),
		Balance: deref(d.float("balance")),
	})
	if err != nil {
		return nil, err
	}
	loaders.FromContext(ctx).User.Prime(u.ID, u)
	return u, nil
}

func (r *Runtime) createProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	d, err := dtoArg(args)
	if err != nil {
		return nil, err
	}
	userID, err := parseUUID("userId", d["userId"])
	if err != nil {
		return nil, err
	}
	mt, err := d.memberType("memberTypeId")
	if err != nil {
		return nil, err
	}
	p, err := r.store.CreateProfile(ctx, store.CreateProfileInput{
		IsMale:       deref(d.boolean("isMale")),
		YearOfBirth:  deref(d.integer("yearOfBirth")),
		UserID:       userID,
		MemberTypeID: deref(mt),
	})
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.ProfileByUserID.Clear(p.UserID)
	l.ProfileByUserID.Prime(p.UserID, p)
	l.ProfileByID.Prime(p.ID, p)
	return p, nil
}

func (r *Runtime) createPost(ctx context.Context, _ any, args map[string]any) (any, error) {
	d, err := dtoArg(args)
	if err != nil {
		return nil, err
	}
	authorID, err := parseUUID("authorId", d["authorId"])
	if err != nil {
		return nil, err
	}
	p, err := r.store.CreatePost(ctx, store.CreatePostInput{
		Title:    deref(d.str("title")),
		Content:  deref(d.str("content")),
		AuthorID: authorID,
	})
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.PostsByAuthor.Clear(p.AuthorID)
	l.Post.Prime(p.ID, p)
	return p, nil
}

func (r *Runtime) changeUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, d, err := idAndDTO(args)
	if err != nil {
		return nil, err
	}
	u, err := r.store.UpdateUser(ctx, id, store.ChangeUserInput{
		Name:    d.str("name"),
		Balance: d.float("balance"),
	})
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.User.Clear(id)
	l.User.Prime(id, u)
	return u, nil
}

func (r *Runtime) changeProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, d, err := idAndDTO(args)
	if err != nil {
		return nil, err
	}
	mt, err := d.memberType("memberTypeId")
	if err != nil {
		return nil, err
	}
	p, err := r.store.UpdateProfile(ctx, id, store.ChangeProfileInput{
		IsMale:       d.boolean("isMale"),
		YearOfBirth:  d.integer("yearOfBirth"),
		MemberTypeID: mt,
	})
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.ProfileByID.Clear(id)
	l.ProfileByUserID.Clear(p.UserID)
	l.ProfileByID.Prime(id, p)
	l.ProfileByUserID.Prime(p.UserID, p)
	return p, nil
}

func (r *Runtime) changePost(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, d, err := idAndDTO(args)
	if err != nil {
		return nil, err
	}
	p, err := r.store.UpdatePost(ctx, id, store.ChangePostInput{
		Title:   d.str("title"),
		Content: d.str("content"),
	})
	if err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.Post.Clear(id)
	l.PostsByAuthor.Clear(p.AuthorID)
	l.Post.Prime(id, p)
	return p, nil
}

// deleteUser cascades in the store, so every cached row may be stale.
func (r *Runtime) deleteUser(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.store.DeleteUser(ctx, id); err != nil {
		return nil, err
	}
	loaders.FromContext(ctx).ClearAll()
	return id.String(), nil
}

func (r *Runtime) deleteProfile(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.store.DeleteProfile(ctx, id); err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.ProfileByID.Clear(id)
	l.ProfileByUserID.ClearAll()
	return id.String(), nil
}

func (r *Runtime) deletePost(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.store.DeletePost(ctx, id); err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.Post.Clear(id)
	l.PostsByAuthor.ClearAll()
	return id.String(), nil
}

func (r *Runtime) subscribeTo(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.editSubscription(ctx, args, r.store.Subscribe)
}

func (r *Runtime) unsubscribeFrom(ctx context.Context, _ any, args map[string]any) (any, error) {
	return r.editSubscription(ctx, args, r.store.Unsubscribe)
}

// editSubscription returns the subscriber id. Both users carry the edge, so
// both cache entries are dropped.
func (r *Runtime) editSubscription(ctx context.Context, args map[string]any, edit func(context.Context, uuid.UUID, uuid.UUID) error) (any, error) {
	userID, err := uuidArg(args, "userId")
	if err != nil {
		return nil, err
	}
	authorID, err := uuidArg(args, "authorId")
	if err != nil {
		return nil, err
	}
	if err := edit(ctx, userID, authorID); err != nil {
		return nil, err
	}
	l := loaders.FromContext(ctx)
	l.User.Clear(userID)
	l.User.Clear(authorID)
	return userID.String(), nil
}

func idAndDTO(args map[string]any) (uuid.UUID, dto, error) {
	id, err := uuidArg(args, "id")
	if err != nil {
		return uuid.Nil, nil, err
	}
	d, err := dtoArg(args)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, d, nil
}
