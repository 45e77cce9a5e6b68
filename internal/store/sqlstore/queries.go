package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/store"
)

func scanMemberType(rows *sql.Rows) (*store.MemberType, error) {
	var mt store.MemberType
	err := rows.Scan(&mt.ID, &mt.Discount, &mt.PostsLimitPerMonth)
	return &mt, err
}

func (s *Store) ListMemberTypes(ctx context.Context) ([]*store.MemberType, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, discount, posts_limit_per_month FROM member_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list member types: %w", err)
	}
	return scanAll(rows, scanMemberType)
}

func (s *Store) FindMemberTypes(ctx context.Context, ids []store.MemberTypeID) ([]*store.MemberType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	cond, args := s.dialect.in("id", keys)
	rows, err := s.query(ctx, s.db, `SELECT id, discount, posts_limit_per_month FROM member_types WHERE `+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find member types: %w", err)
	}
	return scanAll(rows, scanMemberType)
}

func scanUser(rows *sql.Rows) (*store.User, error) {
	u := store.User{SubscribedTo: []uuid.UUID{}, Subscribers: []uuid.UUID{}}
	err := rows.Scan(&u.ID, &u.Name, &u.Balance)
	return &u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.User, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, balance FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users, err := scanAll(rows, scanUser)
	if err != nil {
		return nil, err
	}
	return users, s.attachEdges(ctx, s.db, users)
}

func (s *Store) FindUsers(ctx context.Context, ids []uuid.UUID) ([]*store.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cond, args := s.dialect.in("id", uuidStrings(ids))
	rows, err := s.query(ctx, s.db, `SELECT id, name, balance FROM users WHERE `+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	users, err := scanAll(rows, scanUser)
	if err != nil {
		return nil, err
	}
	return users, s.attachEdges(ctx, s.db, users)
}

// attachEdges fills both subscription directions for users with one query.
func (s *Store) attachEdges(ctx context.Context, q querier, users []*store.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*store.User, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		byID[u.ID] = u
		ids = append(ids, u.ID.String())
	}
	subCond, subArgs := s.dialect.in("subscriber_id", ids)
	authCond, authArgs := s.dialect.in("author_id", ids)
	rows, err := s.query(ctx, q,
		`SELECT subscriber_id, author_id FROM subscribers_on_authors WHERE `+subCond+` OR `+authCond+
			` ORDER BY subscriber_id, author_id`,
		append(subArgs, authArgs...)...)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sub, author uuid.UUID
		if err := rows.Scan(&sub, &author); err != nil {
			return err
		}
		if u, ok := byID[sub]; ok {
			u.SubscribedTo = append(u.SubscribedTo, author)
		}
		if u, ok := byID[author]; ok {
			u.Subscribers = append(u.Subscribers, sub)
		}
	}
	return rows.Err()
}

func (s *Store) getUser(ctx context.Context, q querier, id uuid.UUID) (*store.User, error) {
	u := store.User{SubscribedTo: []uuid.UUID{}, Subscribers: []uuid.UUID{}}
	err := q.QueryRowContext(ctx, s.dialect.rebind(`SELECT id, name, balance FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Name, &u.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.attachEdges(ctx, q, []*store.User{&u}); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, in store.CreateUserInput) (*store.User, error) {
	u := &store.User{ID: s.newID(), Name: in.Name, Balance: in.Balance, SubscribedTo: []uuid.UUID{}, Subscribers: []uuid.UUID{}}
	if _, err := s.exec(ctx, s.db, `INSERT INTO users (id, name, balance) VALUES (?, ?, ?)`, u.ID, u.Name, u.Balance); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, in store.ChangeUserInput) (*store.User, error) {
	var out *store.User
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		u, err := s.getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		next := in.Apply(*u)
		if _, err := s.exec(ctx, tx, `UPDATE users SET name = ?, balance = ? WHERE id = ?`, next.Name, next.Balance, id); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		out = &next
		return nil
	})
	return out, err
}

// DeleteUser relies on ON DELETE CASCADE for the profile, posts and edges.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, s.db, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error {
	_, err := s.exec(ctx, s.db, `INSERT INTO subscribers_on_authors (subscriber_id, author_id) VALUES (?, ?)`, subscriberID, authorID)
	if err != nil {
		return fmt.Errorf("subscription %s -> %s: %w", subscriberID, authorID, err)
	}
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, subscriberID, authorID uuid.UUID) error {
	n, err := s.exec(ctx, s.db, `DELETE FROM subscribers_on_authors WHERE subscriber_id = ? AND author_id = ?`, subscriberID, authorID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s -> %s: %w", subscriberID, authorID, store.ErrNotFound)
	}
	return nil
}

const profileColumns = `id, is_male, year_of_birth, user_id, member_type_id`

func scanProfile(rows *sql.Rows) (*store.Profile, error) {
	var p store.Profile
	err := rows.Scan(&p.ID, &p.IsMale, &p.YearOfBirth, &p.UserID, &p.MemberTypeID)
	return &p, err
}

func (s *Store) ListProfiles(ctx context.Context) ([]*store.Profile, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return scanAll(rows, scanProfile)
}

func (s *Store) FindProfiles(ctx context.Context, ids []uuid.UUID) ([]*store.Profile, error) {
	return s.findProfilesBy(ctx, "id", ids)
}

func (s *Store) FindProfilesByUsers(ctx context.Context, userIDs []uuid.UUID) ([]*store.Profile, error) {
	return s.findProfilesBy(ctx, "user_id", userIDs)
}

func (s *Store) findProfilesBy(ctx context.Context, column string, ids []uuid.UUID) ([]*store.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cond, args := s.dialect.in(column, uuidStrings(ids))
	rows, err := s.query(ctx, s.db, `SELECT `+profileColumns+` FROM profiles WHERE `+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find profiles: %w", err)
	}
	return scanAll(rows, scanProfile)
}

func (s *Store) CreateProfile(ctx context.Context, in store.CreateProfileInput) (*store.Profile, error) {
	p := &store.Profile{
		ID:           s.newID(),
		IsMale:       in.IsMale,
		YearOfBirth:  in.YearOfBirth,
		UserID:       in.UserID,
		MemberTypeID: in.MemberTypeID,
	}
	_, err := s.exec(ctx, s.db,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.IsMale, p.YearOfBirth, p.UserID, string(p.MemberTypeID))
	if err != nil {
		return nil, fmt.Errorf("profile for user %s: %w", in.UserID, err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, in store.ChangeProfileInput) (*store.Profile, error) {
	var out *store.Profile
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		var p store.Profile
		err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`), id).
			Scan(&p.ID, &p.IsMale, &p.YearOfBirth, &p.UserID, &p.MemberTypeID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		p = in.Apply(p)
		_, err = s.exec(ctx, tx,
			`UPDATE profiles SET is_male = ?, year_of_birth = ?, member_type_id = ? WHERE id = ?`,
			p.IsMale, p.YearOfBirth, string(p.MemberTypeID), id)
		if err != nil {
			return fmt.Errorf("member type %s: %w", p.MemberTypeID, err)
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, s.db, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	return nil
}

const postColumns = `id, title, content, author_id`

func scanPost(rows *sql.Rows) (*store.Post, error) {
	var p store.Post
	err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID)
	return &p, err
}

func (s *Store) ListPosts(ctx context.Context) ([]*store.Post, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+postColumns+` FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return scanAll(rows, scanPost)
}

func (s *Store) FindPosts(ctx context.Context, ids []uuid.UUID) ([]*store.Post, error) {
	return s.findPostsBy(ctx, "id", ids)
}

func (s *Store) FindPostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]*store.Post, error) {
	return s.findPostsBy(ctx, "author_id", authorIDs)
}

func (s *Store) findPostsBy(ctx context.Context, column string, ids []uuid.UUID) ([]*store.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cond, args := s.dialect.in(column, uuidStrings(ids))
	rows, err := s.query(ctx, s.db, `SELECT `+postColumns+` FROM posts WHERE `+cond+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	return scanAll(rows, scanPost)
}

func (s *Store) CreatePost(ctx context.Context, in store.CreatePostInput) (*store.Post, error) {
	p := &store.Post{ID: s.newID(), Title: in.Title, Content: in.Content, AuthorID: in.AuthorID}
	_, err := s.exec(ctx, s.db, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?)`, p.ID, p.Title, p.Content, p.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("post by %s: %w", in.AuthorID, err)
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, id uuid.UUID, in store.ChangePostInput) (*store.Post, error) {
	var out *store.Post
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		var p store.Post
		err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id).
			Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("post %s: %w", id, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}
		p = in.Apply(p)
		if _, err := s.exec(ctx, tx, `UPDATE posts SET title = ?, content = ? WHERE id = ?`, p.Title, p.Content, id); err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, s.db, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	return nil
}
