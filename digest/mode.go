package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"xdao.co/docnotary/model"
)

// Mode selects how file bytes become a ContentHash.
type Mode string

const (
	// ModeSHA256 hashes the exact bytes.
	ModeSHA256 Mode = "sha256"
	// ModeCryptoJSLatin1 reproduces crypto-js SHA256 over a binary string
	// read with FileReader.readAsBinaryString: each byte becomes one
	// Latin-1 character and the UTF-8 encoding of that string is hashed.
	// Bytes >= 0x80 therefore enter the hash as two bytes. ASCII-only
	// files hash the same in both modes.
	ModeCryptoJSLatin1 Mode = "cryptojs-latin1"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeSHA256, ModeCryptoJSLatin1}

// ParseMode resolves a mode name. Empty selects ModeSHA256.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSHA256, nil
	case ModeSHA256, ModeCryptoJSLatin1:
		return m, nil
	default:
		return "", fmt.Errorf("unknown hash mode %q (want %s or %s)", s, ModeSHA256, ModeCryptoJSLatin1)
	}
}

// Of returns the digest of b under m. CID always covers the exact bytes.
func (m Mode) Of(b []byte) Result {
	res := Of(b)
	if m == ModeCryptoJSLatin1 {
		sum := sha256.Sum256(latin1ToUTF8(b))
		res.Hash = model.ContentHash(hex.EncodeToString(sum[:]))
	}
	return res
}

// Read consumes r fully and returns the digest of everything read under m.
func (m Mode) Read(r io.Reader) (Result, error) {
	if r == nil {
		return Result{}, model.NewError(model.KindIO, "digest.Read", "no reader")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return Result{}, model.WrapError(model.KindIO, "digest.Read", "", err)
	}
	return m.Of(buf.Bytes()), nil
}

// File reads the file at path and returns its digest under m.
func (m Mode) File(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, model.WrapError(model.KindIO, "digest.File", "", err)
	}
	defer f.Close()

	res, err := m.Read(f)
	if err != nil {
		return Result{}, model.WrapError(model.KindIO, "digest.File",
			fmt.Sprintf("read %s: %v", filepath.Base(path), err), err)
	}
	return res, nil
}

func latin1ToUTF8(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/2)
	for _, c := range b {
		out = utf8.AppendRune(out, rune(c))
	}
	return out
}
