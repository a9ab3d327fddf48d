// Package size implements the two string-to-integer size codecs used by the
// burst-buffer bookkeeping subsystem, plus the user-list codec that rides
// alongside them in the same config/RPC strings.
//
// The two numeric codecs are deliberately asymmetric: ParseSize normalizes
// everything to GiB (matching the units the rest of the bookkeeping state
// tracks sizes in), while Atoi preserves the literal byte count a token
// asks for. Ported from bb_get_size_num/_atoi in the bookkeeping C source;
// kept as two functions rather than one parameterized one because that is
// how the original draws the line and callers pick one or the other, never
// both.
package size

import (
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ParseSize parses tok as a GiB-normalized size. A trailing M/m suffix is
// rounded up from MiB to GiB; G/g (or no suffix) is already GiB; T/t scales
// by 1024 and P/p by 1024^2. The result is then rounded up to the next
// multiple of granularity when granularity > 1. Non-positive or
// unparseable tokens return 0.
func ParseSize(tok string, granularity uint32) uint32 {
	n, suffix := leadingInt(tok)
	if n <= 0 {
		return 0
	}

	size := uint32(n)

	switch suffix {
	case 'm', 'M':
		size = (size + 1023) / 1024
	case 't', 'T':
		size *= 1024
	case 'p', 'P':
		size *= 1024 * 1024
	}

	if granularity > 1 {
		size = ((size + granularity - 1) / granularity) * granularity
	}

	return size
}

// Atoi parses tok as a literal byte count: a trailing k/K, m/M or g/G
// suffix scales by 1024, 1024^2 or 1024^3 respectively, with no further
// rounding. Non-positive or unparseable tokens return 0.
func Atoi(tok string) uint32 {
	n, suffix := leadingInt(tok)
	if n <= 0 {
		return 0
	}

	size := uint32(n)

	switch suffix {
	case 'k', 'K':
		size *= 1024
	case 'm', 'M':
		size *= 1024 * 1024
	case 'g', 'G':
		size *= 1024 * 1024 * 1024
	}

	return size
}

// leadingInt parses the leading base-10 integer of tok, mirroring strtol's
// behavior of stopping at the first non-digit byte, and returns that byte
// (0 if tok was consumed entirely or empty).
func leadingInt(tok string) (int64, byte) {
	i := 0
	if i < len(tok) && (tok[i] == '-' || tok[i] == '+') {
		i++
	}

	start := i
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}

	if i == start {
		return 0, 0
	}

	n, err := strconv.ParseInt(tok[:i], 10, 64)
	if err != nil {
		return 0, 0
	}

	var suffix byte
	if i < len(tok) {
		suffix = tok[i]
	}

	return n, suffix
}

// ParseUsers splits a colon-delimited user list (a trailing comma and
// anything after it is truncated first, mirroring a trailing in-line
// comment convention in the config file) into resolved UIDs. Tokens that
// don't resolve to a known user, and UID 0, are logged and dropped rather
// than aborting the whole parse.
func ParseUsers(buf string, logger log.Logger) []uint32 {
	if comma := strings.Index(buf, ","); comma >= 0 {
		buf = buf[:comma]
	}

	buf = strings.TrimSpace(buf)
	if buf == "" {
		return nil
	}

	var uids []uint32

	for _, tok := range strings.Split(buf, ":") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		uid, err := lookupUID(tok)
		if err != nil || uid == 0 {
			level.Error(logger).Log("msg", "ignoring invalid user in list", "token", tok, "err", err)
			continue
		}

		uids = append(uids, uid)
	}

	return uids
}

// PrintUsers is the inverse of ParseUsers: a colon-delimited string of the
// given UIDs, in the order given.
func PrintUsers(uids []uint32) string {
	toks := make([]string, len(uids))
	for i, uid := range uids {
		toks[i] = strconv.FormatUint(uint64(uid), 10)
	}

	return strings.Join(toks, ":")
}
