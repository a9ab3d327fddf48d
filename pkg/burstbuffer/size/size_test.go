package size

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		tok         string
		granularity uint32
		want        uint32
	}{
		{"0", 1, 0},
		{"1M", 1, 1},
		{"1024M", 1, 1},
		{"2T", 1, 2048},
		{"1P", 1, 1048576},
		{"5G", 4, 8},
		{"-3", 1, 0},
		{"garbage", 1, 0},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, ParseSize(c.tok, c.granularity), "ParseSize(%q, %d)", c.tok, c.granularity)
	}
}

func TestAtoi(t *testing.T) {
	cases := []struct {
		tok  string
		want uint32
	}{
		{"1k", 1024},
		{"-3", 0},
		{"2M", 2097152},
		{"3G", 3221225472},
		{"0", 0},
		{"42", 42},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Atoi(c.tok), "Atoi(%q)", c.tok)
	}
}

func TestParseUsersTruncatesTrailingComment(t *testing.T) {
	uids := ParseUsers("100:1, this is a comment", log.NewNopLogger())
	assert.Equal(t, []uint32{100, 1}, uids)
}

func TestParseUsersIgnoresInvalidAndZeroTokens(t *testing.T) {
	uids := ParseUsers("0:not-a-real-user-xyz:1", log.NewNopLogger())
	assert.Equal(t, []uint32{1}, uids)
}

func TestPrintUsersRoundTrip(t *testing.T) {
	uids := []uint32{100, 2000}
	s := PrintUsers(uids)
	assert.Equal(t, uids, ParseUsers(s, log.NewNopLogger()))
}

func TestParseUsersEmpty(t *testing.T) {
	assert.Nil(t, ParseUsers("", log.NewNopLogger()))
	assert.Nil(t, ParseUsers("   ", log.NewNopLogger()))
}
