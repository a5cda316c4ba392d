package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	encoded, err := EncodeCursor(Cursor{ID: "42"})
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "42", decoded.ID)

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestBuildCursorPage(t *testing.T) {
	extract := func(v int) Cursor { return Cursor{ID: string(rune('a' + v))} }

	page, info, err := BuildCursorPage([]int{1, 2}, 2, extract)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, page)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)

	page, info, err = BuildCursorPage([]int{1, 2, 3}, 2, extract)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, page)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextCursor)
	require.NoError(t, err)
	require.Equal(t, "c", cursor.ID)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, DefaultLimit, Pagination{}.Normalize().Limit)
	require.Equal(t, MaxLimit, Pagination{Limit: 1000}.Normalize().Limit)
	require.Equal(t, 5, Pagination{Limit: 5}.Normalize().Limit)
}
