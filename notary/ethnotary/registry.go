package ethnotary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/registry"
)

// DefaultKeyEnv names the environment variable read for a signing key when
// no key file is given.
const DefaultKeyEnv = "DOCNOTARY_PRIVATE_KEY"

var (
	flagEndpoint string
	flagContract string
	flagABI      string
	flagKeyFile  string
	flagKeyEnv   string
	flagPoll     time.Duration
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "ethereum",
		Description: "Notary contract on an Ethereum JSON-RPC node (Ganache, geth, ...)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagEndpoint, "eth-endpoint", DefaultEndpoint, "JSON-RPC endpoint (for --backend=ethereum)")
			fs.StringVar(&flagContract, "eth-contract", "", "Deployed notary contract address (for --backend=ethereum)")
			fs.StringVar(&flagABI, "eth-abi", "", "Contract ABI or build artifact JSON; empty uses the built-in interface (for --backend=ethereum)")
			fs.StringVar(&flagKeyFile, "eth-key-file", "", "File holding a hex private key for local signing (for --backend=ethereum)")
			fs.StringVar(&flagKeyEnv, "eth-key-env", DefaultKeyEnv, "Environment variable holding a hex private key, used when --eth-key-file is empty (for --backend=ethereum)")
			fs.DurationVar(&flagPoll, "eth-poll-interval", DefaultPollInterval, "Receipt polling interval (for --backend=ethereum)")
		},
		Open: func(ctx context.Context, env registry.Env) (notary.Backend, func() error, error) {
			if strings.TrimSpace(flagContract) == "" {
				return nil, nil, fmt.Errorf("--eth-contract is required for --backend=ethereum")
			}
			parsed, err := LoadABI(flagABI)
			if err != nil {
				return nil, nil, err
			}
			cfg := Config{
				Endpoint:     flagEndpoint,
				Address:      flagContract,
				ABI:          parsed,
				PollInterval: flagPoll,
				Logger:       env.Logger,
			}
			keyHex, err := readKey(flagKeyFile, flagKeyEnv)
			if err != nil {
				return nil, nil, err
			}
			if keyHex != "" {
				if cfg.PrivateKey, err = ParsePrivateKey(keyHex); err != nil {
					return nil, nil, err
				}
			}
			c, err := Dial(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		},
	})
}

func readKey(path, envName string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("ethnotary: read key file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if envName == "" {
		return "", nil
	}
	return strings.TrimSpace(os.Getenv(envName)), nil
}
