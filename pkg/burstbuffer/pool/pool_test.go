package pool

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyArray(t *testing.T) {
	entries, err := Parse([]byte(`{"pools":[]}`), log.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestParseBytesUnitsConvertsToGiB(t *testing.T) {
	raw := []byte(`{"pools":[{"id":"dwcache","units":"bytes","granularity":1073741824,"quantity":128,"free":64}]}`)

	entries, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "dwcache", e.ID)
	assert.EqualValues(t, 1, e.GBGranularity)
	assert.EqualValues(t, 128, e.GBQuantity)
	assert.EqualValues(t, 64, e.GBFree)
}

func TestParseNonBytesUnitsPassesThrough(t *testing.T) {
	raw := []byte(`{"pools":[{"id":"nodes","units":"nodes","granularity":1,"quantity":10,"free":3}]}`)

	entries, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.EqualValues(t, 1, e.GBGranularity)
	assert.EqualValues(t, 10, e.GBQuantity)
	assert.EqualValues(t, 3, e.GBFree)
}

func TestParseKeepsOnlyLastTopLevelKey(t *testing.T) {
	// Only one key is expected in practice, but the parser's documented
	// behavior on multiple keys is "last one wins" rather than an error.
	raw := []byte(`{"a":[{"id":"x"}],"b":[{"id":"y"}]}`)

	entries, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "y", entries[0].ID)
}

func TestParseMalformedDocument(t *testing.T) {
	_, err := Parse([]byte(`not json`), log.NewNopLogger())
	assert.Error(t, err)
}
