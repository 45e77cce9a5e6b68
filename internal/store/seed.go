package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SeedData is the YAML document accepted by Seed. Users reference each other
// by name.
type SeedData struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	Name         string       `yaml:"name"`
	Balance      float64      `yaml:"balance"`
	Profile      *SeedProfile `yaml:"profile"`
	Posts        []SeedPost   `yaml:"posts"`
	SubscribedTo []string     `yaml:"subscribedTo"`
}

type SeedProfile struct {
	IsMale      bool         `yaml:"isMale"`
	YearOfBirth int          `yaml:"yearOfBirth"`
	MemberType  MemberTypeID `yaml:"memberType"`
}

type SeedPost struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// DecodeSeed parses a seed document, rejecting unknown keys.
func DecodeSeed(r io.Reader) (*SeedData, error) {
	var data SeedData
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &data, nil
}

// Seed writes data into st and returns the created users by name. User names
// must be unique within data.
func Seed(ctx context.Context, st Store, data *SeedData) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(data.Users))
	for _, su := range data.Users {
		if _, dup := ids[su.Name]; dup {
			return nil, fmt.Errorf("seed user %q: duplicate name", su.Name)
		}
		u, err := st.CreateUser(ctx, CreateUserInput{Name: su.Name, Balance: su.Balance})
		if err != nil {
			return nil, fmt.Errorf("seed user %q: %w", su.Name, err)
		}
		ids[su.Name] = u.ID

		if sp := su.Profile; sp != nil {
			mt := sp.MemberType
			if mt == "" {
				mt = MemberTypeBasic
			}
			if _, err := ParseMemberTypeID(string(mt)); err != nil {
				return nil, fmt.Errorf("seed user %q: %w", su.Name, err)
			}
			_, err := st.CreateProfile(ctx, CreateProfileInput{
				IsMale:       sp.IsMale,
				YearOfBirth:  sp.YearOfBirth,
				UserID:       u.ID,
				MemberTypeID: mt,
			})
			if err != nil {
				return nil, fmt.Errorf("seed user %q: %w", su.Name, err)
			}
		}
		for _, p := range su.Posts {
			if _, err := st.CreatePost(ctx, CreatePostInput{Title: p.Title, Content: p.Content, AuthorID: u.ID}); err != nil {
				return nil, fmt.Errorf("seed user %q: %w", su.Name, err)
			}
		}
	}
	for _, su := range data.Users {
		for _, author := range su.SubscribedTo {
			authorID, ok := ids[author]
			if !ok {
				return nil, fmt.Errorf("seed user %q: subscribes to unknown user %q", su.Name, author)
			}
			if err := st.Subscribe(ctx, ids[su.Name], authorID); err != nil {
				return nil, fmt.Errorf("seed user %q: %w", su.Name, err)
			}
		}
	}
	return ids, nil
}
