package resolvers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/store"
)

// await defers reading one loader result. An absent row becomes null.
func await[V any](th *dataloader.Thunk[V]) Deferred {
	return func(ctx context.Context) (any, error) {
		v, found, err := th.Await(ctx).Get()
		if err != nil || !found {
			return nil, err
		}
		return v, nil
	}
}

// awaitFound defers reading several loader results, keeping request order
// and skipping absent rows. Any failed key fails the whole field.
func awaitFound[V any](th *dataloader.ThunkMany[V]) Deferred {
	return func(ctx context.Context) (any, error) {
		out := make([]V, 0, th.Len())
		for _, res := range th.Await(ctx) {
			v, found, err := res.Get()
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, v)
			}
		}
		return out, nil
	}
}

func prime[K comparable, V any](l *dataloader.Loader[K, V], rows []V, keyOf func(V) K) {
	for _, row := range rows {
		l.Prime(keyOf(row), row)
	}
}

// parseUUID accepts the textual and the typed form.
func parseUUID(name string, v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%s: invalid UUID %q", name, v)
		}
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%s: expected UUID, got %T", name, v)
}

func uuidArg(args map[string]any, name string) (uuid.UUID, error) {
	return parseUUID(name, args[name])
}

func memberTypeArg(args map[string]any, name string) (store.MemberTypeID, error) {
	s, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%s: expected MemberTypeId, got %T", name, args[name])
	}
	return store.ParseMemberTypeID(s)
}
