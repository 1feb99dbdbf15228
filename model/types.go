package model

import (
	"strings"
	"time"
)

// Account identifies the party initiating a call against the ledger,
// usually a 0x-prefixed hex address.
type Account string

// ZeroAccount is the address a contract returns for an absent owner.
const ZeroAccount Account = "0x0000000000000000000000000000000000000000"

// IsZero reports whether a is empty or the all-zero address.
func (a Account) IsZero() bool {
	return a == "" || strings.EqualFold(string(a), string(ZeroAccount))
}

func (a Account) String() string { return string(a) }

// ContentHash is the lowercase hex SHA-256 digest of a file's bytes.
type ContentHash string

func (h ContentHash) String() string { return string(h) }

// Record is the notarization state of one content hash as reported by the
// contract.
type Record struct {
	Notarized bool    `json:"notarized"`
	Owner     Account `json:"owner"`
	// Timestamp is unix seconds as recorded by the contract.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the record timestamp as a time.Time, or the zero time when the
// record carries none.
func (r Record) Time() time.Time {
	if r.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(r.Timestamp, 0)
}

// NotarizeResult describes the outcome of a check-then-act notarization.
//
// Submitted is false when the check found an existing record; Existing then
// holds that record and no transaction was sent.
type NotarizeResult struct {
	Submitted bool   `json:"submitted"`
	Existing  Record `json:"existing"`
}
