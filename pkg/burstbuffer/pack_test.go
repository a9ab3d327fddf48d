package burstbuffer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackBufsFiltersByUID(t *testing.T) {
	s := NewState()
	s.AllocJobRec(Job{JobID: 1, UserID: 10}, 5)
	s.AllocJobRec(Job{JobID: 2, UserID: 20}, 7)

	var buf bytes.Buffer
	n := s.PackBufs(10, &buf)
	assert.Equal(t, 1, n)

	buf.Reset()
	n = s.PackBufs(0, &buf)
	assert.Equal(t, 2, n, "uid 0 sees every allocation")
}

func TestPackBufsFieldOrder(t *testing.T) {
	s := NewState()
	a := s.AllocJobRec(Job{JobID: 42, UserID: 1}, 99)
	a.Name = "scratch"
	a.GRES = []GRES{{Name: "dwcache", AvailCnt: 2, UsedCnt: 1}}

	var buf bytes.Buffer
	s.PackBufs(0, &buf)

	r := bytes.NewReader(buf.Bytes())

	var arrayJobID, arrayTaskID, gresCnt uint32
	require.NoError(t, binary.Read(r, binary.BigEndian, &arrayJobID))
	require.NoError(t, binary.Read(r, binary.BigEndian, &arrayTaskID))
	require.NoError(t, binary.Read(r, binary.BigEndian, &gresCnt))
	assert.EqualValues(t, 1, gresCnt)

	var nameLen uint32
	require.NoError(t, binary.Read(r, binary.BigEndian, &nameLen))
	name := make([]byte, nameLen)
	_, err := r.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "dwcache", string(name))
}

func TestPackStateIncludesAggregateCounters(t *testing.T) {
	s := NewState()
	s.TotalSpace = 1000
	s.UsedSpace = 250
	s.Config.UserSizeLimit = 500

	var buf bytes.Buffer
	s.PackState(&buf)
	assert.NotZero(t, buf.Len())
}
