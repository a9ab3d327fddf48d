package statuscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	c.Record("node01", false)

	entry, ok := c.Get("node01")
	assert.True(t, ok)
	assert.Equal(t, "node01", entry.NodeName)
	assert.False(t, entry.Failed)
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	_, ok := c.Get("unknown")
	assert.False(t, ok)
}

func TestEntryExpires(t *testing.T) {
	c := New(20 * time.Millisecond)
	defer c.Stop()

	c.Record("node01", true)
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("node01")
	assert.False(t, ok)
}
