// Package store defines the persistence contract for the member dataset.
//
// Bulk finds return matching rows in no particular order and silently omit
// ids without a row; callers that need positional results align them
// themselves.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by updates and deletes of missing rows.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break a uniqueness rule.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference is returned when a write references a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// Store is implemented by memstore and sqlstore.
type Store interface {
	ListMemberTypes(ctx context.Context) ([]*MemberType, error)
	FindMemberTypes(ctx context.Context, ids []MemberTypeID) ([]*MemberType, error)

	ListUsers(ctx context.Context) ([]*User, error)
	FindUsers(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in ChangeUserInput) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Subscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error
	Unsubscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error

	ListProfiles(ctx context.Context) ([]*Profile, error)
	FindProfiles(ctx context.Context, ids []uuid.UUID) ([]*Profile, error)
	FindProfilesByUsers(ctx context.Context, userIDs []uuid.UUID) ([]*Profile, error)
	CreateProfile(ctx context.Context, in CreateProfileInput) (*Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in ChangeProfileInput) (*Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error

	ListPosts(ctx context.Context) ([]*Post, error)
	FindPosts(ctx context.Context, ids []uuid.UUID) ([]*Post, error)
	FindPostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]*Post, error)
	CreatePost(ctx context.Context, in CreatePostInput) (*Post, error)
	UpdatePost(ctx context.Context, id uuid.UUID, in ChangePostInput) (*Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error

	Close() error
}
