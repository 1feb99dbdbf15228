package ethnotary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"xdao.co/docnotary/notary"
)

// defaultABI describes the notary contract this front-end was written
// against. Deployments built from a different compilation should supply
// their own artifact.
//
//go:embed SimpleDigitalNotary.abi.json
var defaultABI []byte

// artifact is the subset of a truffle/hardhat build artifact we read.
type artifact struct {
	ABI json.RawMessage `json:"abi"`
}

// DefaultABI returns the built-in contract interface.
func DefaultABI() abi.ABI {
	parsed, err := ParseABI(defaultABI)
	if err != nil {
		panic(fmt.Sprintf("ethnotary: embedded ABI: %v", err))
	}
	return parsed
}

// LoadABI reads a contract interface from path. An empty path selects the
// built-in interface.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("ethnotary: read abi: %w", err)
	}
	return ParseABI(b)
}

// ParseABI accepts either a bare ABI array or a build artifact carrying one
// under "abi", and checks that the three notary methods have the expected
// shapes.
func ParseABI(b []byte) (abi.ABI, error) {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '{' {
		var art artifact
		if err := json.Unmarshal(raw, &art); err != nil {
			return abi.ABI{}, fmt.Errorf("ethnotary: parse artifact: %w", err)
		}
		if len(art.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("ethnotary: artifact has no abi")
		}
		raw = art.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("ethnotary: parse abi: %w", err)
	}
	if err := checkABI(parsed); err != nil {
		return abi.ABI{}, err
	}
	return parsed, nil
}

func checkABI(parsed abi.ABI) error {
	want := []struct {
		name    string
		outputs []byte
	}{
		{notary.MethodNotarize, nil},
		{notary.MethodVerify, []byte{abi.BoolTy, abi.AddressTy, abi.UintTy}},
		{notary.MethodDetails, []byte{abi.AddressTy, abi.UintTy}},
	}
	for _, w := range want {
		m, ok := parsed.Methods[w.name]
		if !ok {
			return fmt.Errorf("ethnotary: abi is missing method %s", w.name)
		}
		if len(m.Inputs) != 1 || m.Inputs[0].Type.T != abi.StringTy {
			return fmt.Errorf("ethnotary: %s must take a single string argument", w.name)
		}
		if len(m.Outputs) != len(w.outputs) {
			return fmt.Errorf("ethnotary: %s returns %d values, want %d", w.name, len(m.Outputs), len(w.outputs))
		}
		for i, ty := range w.outputs {
			if m.Outputs[i].Type.T != ty {
				return fmt.Errorf("ethnotary: %s output %d has type %s", w.name, i, m.Outputs[i].Type.String())
			}
		}
	}
	return nil
}
