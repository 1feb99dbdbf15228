package memledger

import (
	"context"

	"github.com/spf13/pflag"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/registry"
)

var (
	flagAccounts []string
	flagGasCost  uint64
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "memory",
		Description: "In-process ledger with contract semantics (state is lost on exit)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringSliceVar(&flagAccounts, "memory-accounts", nil, "Accounts the in-process ledger manages (for --backend=memory)")
			fs.Uint64Var(&flagGasCost, "memory-gas-cost", DefaultGasCost, "Gas a notarization consumes (for --backend=memory)")
		},
		Open: func(ctx context.Context, env registry.Env) (notary.Backend, func() error, error) {
			accts := make([]model.Account, 0, len(flagAccounts))
			for _, a := range flagAccounts {
				accts = append(accts, model.Account(a))
			}
			return New(Options{Accounts: accts, GasCost: flagGasCost}), nil, nil
		},
	})
}
