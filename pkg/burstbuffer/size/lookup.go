package size

import (
	"os/user"
	"strconv"
)

// lookupUID resolves tok to a numeric UID, accepting either a bare numeric
// UID or a username to be resolved via the OS user database.
func lookupUID(tok string) (uint32, error) {
	if uid, err := strconv.ParseUint(tok, 10, 32); err == nil {
		return uint32(uid), nil
	}

	u, err := user.Lookup(tok)
	if err != nil {
		return 0, err
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, err
	}

	return uint32(uid), nil
}
