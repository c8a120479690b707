package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_ScanFallsBackToEmpty(t *testing.T) {
	for _, src := range []any{nil, "not json", []byte(`{"a":1}`), "null", 42} {
		var l StringList
		require.NoError(t, l.Scan(src))
		assert.NotNil(t, l)
		assert.Empty(t, l)
	}
}

func TestStringList_ScanDecodes(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["Music","Art"]`)))
	assert.Equal(t, StringList{"Music", "Art"}, l)
}

func TestStringList_ValueOfNil(t *testing.T) {
	var l StringList
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestCanonicalPair(t *testing.T) {
	lo, hi := CanonicalPair(9, 4)
	assert.Equal(t, uint64(4), lo)
	assert.Equal(t, uint64(9), hi)
}
