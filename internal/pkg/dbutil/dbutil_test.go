package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM t WHERE a = ? LIMIT ?,?", []interface{}{"x", 10, 20})
	require.Equal(t, "SELECT id FROM t WHERE a = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"x", 20, 10}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.True(t, IsConflict(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(fmt.Errorf("plain")))
}

func TestJSONColumnHelpers(t *testing.T) {
	var nilSlice []string
	raw, err := MarshalJSONColumn(nilSlice)
	require.NoError(t, err)
	require.Equal(t, "[]", raw)

	raw, err = MarshalJSONColumn([]string{"a", "b"})
	require.NoError(t, err)

	var out []string
	require.NoError(t, UnmarshalJSONColumn([]byte(raw), &out))
	require.Equal(t, []string{"a", "b"}, out)

	out = nil
	require.NoError(t, UnmarshalJSONColumn([]byte("null"), &out))
	require.Nil(t, out)
	require.NoError(t, UnmarshalJSONColumn(nil, &out))
}
