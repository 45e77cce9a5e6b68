package store

import (
	"fmt"

	"github.com/google/uuid"
)

// MemberTypeID names a member tier.
type MemberTypeID string

const (
	MemberTypeBasic    MemberTypeID = "BASIC"
	MemberTypeBusiness MemberTypeID = "BUSINESS"
)

// ParseMemberTypeID validates s as a known tier.
func ParseMemberTypeID(s string) (MemberTypeID, error) {
	switch id := MemberTypeID(s); id {
	case MemberTypeBasic, MemberTypeBusiness:
		return id, nil
	}
	return "", fmt.Errorf("unknown member type %q", s)
}

// DefaultMemberTypes are the tiers every store starts with.
func DefaultMemberTypes() []*MemberType {
	return []*MemberType{
		{ID: MemberTypeBasic, Discount: 2.3, PostsLimitPerMonth: 20},
		{ID: MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}
}

type MemberType struct {
	ID                 MemberTypeID `json:"id"`
	Discount           float64      `json:"discount"`
	PostsLimitPerMonth int          `json:"postsLimitPerMonth"`
}

// User carries both directions of its subscription edges.
type User struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Balance float64   `json:"balance"`

	// SubscribedTo lists the authors this user follows.
	SubscribedTo []uuid.UUID `json:"-"`
	// Subscribers lists the users following this user.
	Subscribers []uuid.UUID `json:"-"`
}

type Profile struct {
	ID           uuid.UUID    `json:"id"`
	IsMale       bool         `json:"isMale"`
	YearOfBirth  int          `json:"yearOfBirth"`
	UserID       uuid.UUID    `json:"userId"`
	MemberTypeID MemberTypeID `json:"memberTypeId"`
}

type Post struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	AuthorID uuid.UUID `json:"authorId"`
}

type CreateUserInput struct {
	Name    string
	Balance float64
}

// ChangeUserInput updates only the non-nil fields.
type ChangeUserInput struct {
	Name    *string
	Balance *float64
}

type CreateProfileInput struct {
	IsMale       bool
	YearOfBirth  int
	UserID       uuid.UUID
	MemberTypeID MemberTypeID
}

type ChangeProfileInput struct {
	IsMale       *bool
	YearOfBirth  *int
	MemberTypeID *MemberTypeID
}

type CreatePostInput struct {
	Title    string
	Content  string
	AuthorID uuid.UUID
}

type ChangePostInput struct {
	Title   *string
	Content *string
}

// Apply returns a copy of u with in applied.
func (in ChangeUserInput) Apply(u User) User {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Balance != nil {
		u.Balance = *in.Balance
	}
	return u
}

func (in ChangeProfileInput) Apply(p Profile) Profile {
	if in.IsMale != nil {
		p.IsMale = *in.IsMale
	}
	if in.YearOfBirth != nil {
		p.YearOfBirth = *in.YearOfBirth
	}
	if in.MemberTypeID != nil {
		p.MemberTypeID = *in.MemberTypeID
	}
	return p
}

func (in ChangePostInput) Apply(p Post) Post {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	return p
}
