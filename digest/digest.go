// Package digest computes content hashes of document bytes.
//
// The hash is SHA-256 of the exact bytes, hex-encoded in lowercase. It never
// depends on file metadata, so a hash recorded on-chain from one machine can
// be recomputed anywhere from the same bytes. ModeCryptoJSLatin1 recomputes
// hashes recorded by the browser front-end, which differ for non-ASCII bytes.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/docnotary/model"
)

// HashLen is the length of a ContentHash in hex characters.
const HashLen = 64

// Result is the digest of one document.
type Result struct {
	Hash model.ContentHash
	// CID is the CIDv1 (raw codec, sha2-256) of the same bytes.
	CID  string
	Size int64
}

// Sum returns the content hash of b.
func Sum(b []byte) model.ContentHash {
	return Of(b).Hash
}

// Of returns the full digest result for b.
func Of(b []byte) Result {
	mh, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for unknown codes or bad lengths.
		panic(fmt.Sprintf("digest: sha2-256 multihash: %v", err))
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		panic(fmt.Sprintf("digest: decode multihash: %v", err))
	}
	return Result{
		Hash: model.ContentHash(hex.EncodeToString(dec.Digest)),
		CID:  cid.NewCidV1(cid.Raw, mh).String(),
		Size: int64(len(b)),
	}
}

// Read consumes r fully and returns the digest of everything read.
//
// A read that fails part way returns an IO error and no partial hash.
func Read(r io.Reader) (Result, error) {
	return ModeSHA256.Read(r)
}

// File reads the file at path and returns its digest.
func File(path string) (Result, error) {
	return ModeSHA256.File(path)
}

// IsContentHash reports whether s has the shape of a ContentHash:
// exactly 64 lowercase hex characters.
func IsContentHash(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}
