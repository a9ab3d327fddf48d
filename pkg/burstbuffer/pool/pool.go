// Package pool parses the JSON pool listing a burst-buffer "get system
// state" script emits on stdout: a single-key object whose value is an
// array of pool descriptions, e.g. {"pools":[{"id":"dwcache","units":
// "bytes","granularity":1073741824,"quantity":128,"free":64}]}.
//
// Ported from _json_parse_array/_json_parse_object in the bookkeeping C
// source. The original walks ALL top-level keys of the outer object but
// keeps only the array parsed from the LAST one seen (each iteration
// reassigns the same return-value variable); this is preserved here on
// purpose rather than "fixed", since every get_sys_state script this
// subsystem has ever talked to emits exactly one top-level key.
package pool

import (
	"bytes"
	"encoding/json"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Entry describes one burst-buffer pool.
type Entry struct {
	ID          string `json:"id"`
	Units       string `json:"units"`
	Granularity int64  `json:"granularity"`
	Quantity    int64  `json:"quantity"`
	Free        int64  `json:"free"`

	// GBGranularity, GBQuantity and GBFree are derived from the fields
	// above: when Units is "bytes", GBGranularity is Granularity in whole
	// GiB and GBQuantity/GBFree are Quantity/Free multiplied by it;
	// otherwise they're a straight copy so callers
	// can iterate pools uniformly regardless of the native unit.
	GBGranularity int64 `json:"-"`
	GBQuantity    int64 `json:"-"`
	GBFree        int64 `json:"-"`
}

const bytesPerGiB = 1024 * 1024 * 1024

// Parse parses the raw JSON pool listing emitted by a get_sys_state
// script and returns its entries. A malformed document returns an error;
// an empty array returns an empty slice, and a document with no
// array-valued key returns nil.
func Parse(raw []byte, logger log.Logger) ([]Entry, error) {
	var doc map[string]json.RawMessage

	if err := json.Unmarshal(raw, &doc); err != nil {
		level.Error(logger).Log("msg", "json parser failed on pool listing", "err", err)
		return nil, err
	}

	var entries []Entry

	// Walk the keys in document order (map iteration order is random), so
	// the array kept is the one under the last key.
	dec := json.NewDecoder(bytes.NewReader(raw))
	_, _ = dec.Token() // the opening '{', already validated above

	for dec.More() {
		tok, _ := dec.Token()
		key, _ := tok.(string)

		var value json.RawMessage
		_ = dec.Decode(&value)

		var parsed []Entry
		if err := json.Unmarshal(value, &parsed); err != nil {
			level.Debug(logger).Log("msg", "skipping non-array top-level key", "key", key, "err", err)
			continue
		}

		entries = parsed
	}

	for i := range entries {
		e := &entries[i]
		if e.Units == "bytes" {
			e.GBGranularity = e.Granularity / bytesPerGiB
			e.GBQuantity = e.Quantity * e.GBGranularity
			e.GBFree = e.Free * e.GBGranularity
		} else {
			e.GBGranularity = e.Granularity
			e.GBQuantity = e.Quantity
			e.GBFree = e.Free
		}
	}

	return entries, nil
}
