// Package registry lets notary backends plug into programs at build time.
//
// Backends typically register themselves in init():
//
//	registry.MustRegister(registry.Backend{ ... })
//
// The binary must import the backend package for registration to occur.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/pflag"

	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/notary"
)

// Backend is a build-time plugin that can open a notary.Backend.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend-specific flags to fs.
	RegisterFlags func(fs *pflag.FlagSet)

	// Open connects using values parsed into the flags registered by
	// RegisterFlags. It returns an optional close function.
	Open func(ctx context.Context, env Env) (notary.Backend, func() error, error)
}

// Env carries process-wide collaborators into Open.
type Env struct {
	Logger *observability.Logger
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.RegisterFlags == nil {
		return fmt.Errorf("registry: backend %q missing RegisterFlags", b.Name)
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers flags for all backends matching usage, so a single
// parse pass accepts every backend's options.
func RegisterFlags(fs *pflag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

// ForeignFlags returns the flag names of backends that do not match usage,
// sorted. A config file shared between binaries may carry their options.
// Registering them on a scratch set resets their bound values, which is
// harmless because Open refuses those backends for usage.
func ForeignFlags(usage Usage) []string {
	mu.RLock()
	var foreign []Backend
	for _, b := range backends {
		if !b.Usage.allows(usage) {
			foreign = append(foreign, b)
		}
	}
	mu.RUnlock()

	scratch := pflag.NewFlagSet("foreign", pflag.ContinueOnError)
	for _, b := range foreign {
		b.RegisterFlags(scratch)
	}
	var names []string
	scratch.VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })
	sort.Strings(names)
	return names
}

// Open opens the named backend if it exists and matches usage.
func Open(ctx context.Context, name string, usage Usage, env Env) (notary.Backend, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("backend %q not supported in this binary", name)
	}
	if env.Logger == nil {
		env.Logger = observability.Nop()
	}
	return b.Open(ctx, env)
}
