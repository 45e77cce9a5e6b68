package reqid

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)
	require.GreaterOrEqual(t, id, int64(0))

	_, ok = FromContext(context.Background())
	require.False(t, ok, "unexpected id in empty context")
}

func TestString(t *testing.T) {
	ctx, id := NewContext(context.Background())
	require.Equal(t, strconv.FormatInt(id, 36), String(ctx))
	require.Empty(t, String(context.Background()))
}
