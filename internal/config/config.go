// Package config loads docnotary configuration from YAML.
//
// Configuration comes from a single file named by the --config flag or the
// DOCNOTARY_CONFIG environment variable. There is no discovery. Without a
// file, Default applies.
//
// Command-line flags win over file values and file values win over
// defaults: Apply copies file values only onto flags the user did not set.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"xdao.co/docnotary/digest"
)

// EnvVar names the environment variable consulted by Load.
const EnvVar = "DOCNOTARY_CONFIG"

// Config is the docnotary configuration file.
type Config struct {
	// Backend names a registered notary backend (ethereum, memory, grpc).
	Backend string `yaml:"backend"`

	// Account selects the caller among the provider's accounts.
	Account AccountConfig `yaml:"account"`

	// GasLimit is the gas ceiling for notarization transactions.
	// Default: 3000000
	GasLimit uint64 `yaml:"gas_limit"`

	// CallTimeout bounds each contract call, as a Go duration.
	// Empty or "0" means no bound.
	CallTimeout string `yaml:"call_timeout"`

	// Timezone is the IANA zone used to render timestamps.
	// Default: Local
	Timezone string `yaml:"timezone"`

	// HashMode is sha256 (exact bytes) or cryptojs-latin1, which matches
	// hashes recorded by the browser front-end for non-ASCII files.
	// Default: sha256
	HashMode string `yaml:"hash_mode"`

	Log LogConfig `yaml:"log"`

	// Options holds backend flag values keyed by flag name without dashes,
	// for example eth-contract or grpc-target.
	Options map[string]string `yaml:"options"`

	// present records the settings the file spelled out, by yaml path.
	present map[string]bool
}

// flagNames maps yaml paths of core settings to command-line flags.
var flagNames = []struct{ path, flag string }{
	{"backend", "backend"},
	{"account.index", "account-index"},
	{"account.address", "account"},
	{"gas_limit", "gas-limit"},
	{"call_timeout", "call-timeout"},
	{"timezone", "timezone"},
	{"hash_mode", "hash-mode"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
	{"log.file", "log-file"},
}

// AccountConfig selects the session account. Address wins over Index.
type AccountConfig struct {
	Index   int    `yaml:"index"`
	Address string `yaml:"address"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
	// File receives log output instead of stderr when set. The terminal UI
	// logs here so output does not tear the screen.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend:  "ethereum",
		GasLimit: 3_000_000,
		Timezone: "Local",
		HashMode: string(digest.ModeSHA256),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Options: map[string]string{},
	}
}

// Load loads the file named by DOCNOTARY_CONFIG, or returns Default when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.present, err = presentKeys(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Options == nil {
		cfg.Options = map[string]string{}
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field syntax.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend) == "" {
		return fmt.Errorf("backend is required")
	}
	if c.Account.Index < 0 {
		return fmt.Errorf("account.index must not be negative")
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("gas_limit must be positive")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := digest.ParseMode(c.HashMode); err != nil {
		return fmt.Errorf("hash_mode: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Timeout parses CallTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.CallTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 0, fmt.Errorf("call_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("call_timeout must not be negative")
	}
	return d, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// FlagValues returns the settings the file spelled out, plus all options,
// as flag name/value pairs.
func (c *Config) FlagValues() map[string]string {
	all := map[string]string{
		"backend":       c.Backend,
		"account-index": strconv.Itoa(c.Account.Index),
		"account":       c.Account.Address,
		"gas-limit":     strconv.FormatUint(c.GasLimit, 10),
		"call-timeout":  c.CallTimeout,
		"timezone":      c.Timezone,
		"hash-mode":     c.HashMode,
		"log-level":     c.Log.Level,
		"log-format":    c.Log.Format,
		"log-file":      c.Log.File,
	}
	v := make(map[string]string, len(c.Options)+len(flagNames))
	for _, n := range flagNames {
		if c.present[n.path] {
			v[n.flag] = all[n.flag]
		}
	}
	for k, val := range c.Options {
		v[k] = val
	}
	return v
}

// presentKeys lists the scalar settings in a YAML document by dotted path,
// one level deep.
func presentKeys(data []byte) (map[string]bool, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(raw))
	for k, v := range raw {
		if sub, ok := v.(map[string]interface{}); ok {
			for sk := range sub {
				set[k+"."+sk] = true
			}
			continue
		}
		set[k] = true
	}
	return set, nil
}

// Apply copies file settings onto every flag in fs the user did not set on
// the command line. Core settings a binary does not define are skipped. An
// entry under options that names no flag is an error unless it is listed in
// foreign, the flags of backends this binary does not offer.
func (c *Config) Apply(fs *pflag.FlagSet, foreign ...string) error {
	skip := make(map[string]bool, len(foreign))
	for _, name := range foreign {
		skip[name] = true
	}
	values := c.FlagValues()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			if _, isOption := c.Options[name]; isOption && !skip[name] {
				return fmt.Errorf("options.%s: no such flag", name)
			}
			continue
		}
		if f.Changed {
			continue
		}
		if err := fs.Set(name, values[name]); err != nil {
			return fmt.Errorf("config value for --%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) expandVariables() {
	c.Log.File = expandVars(c.Log.File)
	for k, v := range c.Options {
		c.Options[k] = expandVars(v)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
