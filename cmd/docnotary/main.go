package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"xdao.co/docnotary/controller"
	"xdao.co/docnotary/digest"
	"xdao.co/docnotary/internal/config"
	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/registry"
	"xdao.co/docnotary/tui"

	_ "xdao.co/docnotary/notary/ethnotary"
	_ "xdao.co/docnotary/notary/grpcnotary"
	_ "xdao.co/docnotary/notary/memledger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "notarize":
		return cmdNotarize(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "details":
		return cmdDetails(args[1:], out, errOut)
	case "accounts":
		return cmdAccounts(args[1:], out, errOut)
	case "ui":
		return cmdUI(args[1:], out, errOut)
	case "backends":
		return cmdBackends(out)
	case "version":
		_, _ = fmt.Fprintln(out, version)
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "docnotary: hash files and notarize them on a notary contract")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  docnotary hash [--cid] [--hash-mode mode] <file>")
	fmt.Fprintln(w, "  docnotary notarize [backend flags] <file>")
	fmt.Fprintln(w, "  docnotary verify [backend flags] <file>")
	fmt.Fprintln(w, "  docnotary details [backend flags] <hash>")
	fmt.Fprintln(w, "  docnotary accounts [backend flags]")
	fmt.Fprintln(w, "  docnotary ui [backend flags] [file]")
	fmt.Fprintln(w, "  docnotary backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Backend flags:")
	fmt.Fprintln(w, "  --config <file>        YAML config (or set "+config.EnvVar+")")
	fmt.Fprintln(w, "  --backend <name>       ethereum (default), memory, grpc")
	fmt.Fprintln(w, "  --account <0x...>      caller account; default is --account-index 0")
	fmt.Fprintln(w, "  --hash-mode <mode>     sha256 (default) or cryptojs-latin1 for hashes from the browser app")
	fmt.Fprintln(w, "  --metrics-listen <a>   serve /metrics while the command runs")
	fmt.Fprintln(w, "  run a command with --help for the full list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - status messages go to stderr; results go to stdout")
	fmt.Fprintln(w, "  - verify exits 0 whether or not the document is notarized")
	fmt.Fprintln(w, "  - details exits 1 when the hash has no record")
	fmt.Fprintln(w, "  - the memory backend forgets everything when the process exits")
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("hash", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	withCID := fs.Bool("cid", false, "Also print the CIDv1 (raw, sha2-256) of the file")
	hashMode := fs.String("hash-mode", config.Default().HashMode, "Digest mode: sha256 or cryptojs-latin1")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: docnotary hash [--cid] [--hash-mode mode] <file>")
		return 2
	}
	mode, err := digest.ParseMode(*hashMode)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	res, err := mode.File(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "hash %s: %v\n", fs.Arg(0), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, res.Hash)
	if *withCID {
		_, _ = fmt.Fprintln(out, res.CID)
	}
	return 0
}

func cmdNotarize(args []string, out io.Writer, errOut io.Writer) int {
	s, code := setup("notarize", args, 1, "<file>", errOut, nil)
	if s == nil {
		return code
	}
	defer s.close()

	if err := s.ctrl.SelectFile(s.ctx, s.args[0]); err != nil {
		return 1
	}
	res, err := s.ctrl.Notarize(s.ctx)
	if err != nil {
		return 1
	}
	hash := s.ctrl.Snapshot().FileHash
	if res.Submitted {
		_, _ = fmt.Fprintf(out, "notarized\t%s\t%s\n", hash, s.ctrl.Account())
	} else {
		_, _ = fmt.Fprintf(out, "already-notarized\t%s\t%s\t%s\n", hash, res.Existing.Owner, s.ctrl.FormatTime(res.Existing.Timestamp))
	}
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	s, code := setup("verify", args, 1, "<file>", errOut, nil)
	if s == nil {
		return code
	}
	defer s.close()

	if err := s.ctrl.SelectFile(s.ctx, s.args[0]); err != nil {
		return 1
	}
	rec, err := s.ctrl.Verify(s.ctx)
	if err != nil {
		return 1
	}
	hash := s.ctrl.Snapshot().FileHash
	if rec.Notarized {
		_, _ = fmt.Fprintf(out, "notarized\t%s\t%s\t%s\n", hash, rec.Owner, s.ctrl.FormatTime(rec.Timestamp))
	} else {
		_, _ = fmt.Fprintf(out, "not-notarized\t%s\n", hash)
	}
	return 0
}

func cmdDetails(args []string, out io.Writer, errOut io.Writer) int {
	s, code := setup("details", args, 1, "<hash>", errOut, nil)
	if s == nil {
		return code
	}
	defer s.close()

	if !digest.IsContentHash(s.args[0]) {
		fmt.Fprintf(errOut, "note: %q is not a 64-character lowercase hex hash; looking it up as typed\n", s.args[0])
	}
	s.ctrl.SetLookupHash(s.args[0])
	rec, err := s.ctrl.Lookup(s.ctx)
	if err != nil {
		return 1
	}
	_, _ = fmt.Fprintf(out, "owner\t%s\ntimestamp\t%s\n", rec.Owner, s.ctrl.FormatTime(rec.Timestamp))
	return 0
}

func cmdAccounts(args []string, out io.Writer, errOut io.Writer) int {
	s, code := setup("accounts", args, 0, "", errOut, nil)
	if s == nil {
		return code
	}
	defer s.close()

	accts, err := s.backend.Accounts(s.ctx)
	if err != nil {
		fmt.Fprintf(errOut, "accounts: %v\n", err)
		return 1
	}
	selected := s.ctrl.Account()
	for _, a := range accts {
		mark := " "
		if a == selected {
			mark = "*"
		}
		_, _ = fmt.Fprintf(out, "%s %s\n", mark, a)
	}
	return 0
}

func cmdUI(args []string, out io.Writer, errOut io.Writer) int {
	notifier := tui.NewNotifier(64)
	defer notifier.Close()

	s, code := setup("ui", args, -1, "[file]", errOut, notifier)
	if s == nil {
		return code
	}
	defer s.close()
	if len(s.args) > 1 {
		fmt.Fprintln(errOut, "usage: docnotary ui [backend flags] [file]")
		return 2
	}
	if len(s.args) == 1 {
		// The outcome is queued on the notifier and shown once the
		// program starts.
		_ = s.ctrl.SelectFile(s.ctx, s.args[0])
	}

	program := tea.NewProgram(
		tui.NewModel(s.ctx, s.ctrl, notifier),
		tea.WithAltScreen(),
		tea.WithContext(s.ctx),
		tea.WithOutput(out),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(errOut, "ui: %v\n", err)
		return 1
	}
	return 0
}

func cmdBackends(out io.Writer) int {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}

// session is an opened backend plus the controller driving it.
type session struct {
	ctx     context.Context
	args    []string
	backend notary.Backend
	ctrl    *controller.Controller
	closers []func() error
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// setup parses the shared flags and connects. nargs is the exact number of
// positional arguments, or -1 for any. A nil notifier prints status
// messages to errOut. On failure it returns a nil session and the exit code.
func setup(name string, args []string, nargs int, argUsage string, errOut io.Writer, notifier controller.Notifier) (*session, int) {
	def := config.Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvVar+")")
	backendName := fs.String("backend", def.Backend, "Notary backend name (see: docnotary backends)")
	account := fs.String("account", "", "Caller account address; wins over --account-index")
	accountIndex := fs.Int("account-index", 0, "Caller account position among the provider's accounts")
	gasLimit := fs.Uint64("gas-limit", def.GasLimit, "Gas ceiling for notarization transactions")
	callTimeout := fs.Duration("call-timeout", 0, "Bound on each contract call; 0 waits indefinitely")
	timezone := fs.String("timezone", def.Timezone, "IANA zone for rendered timestamps")
	hashMode := fs.String("hash-mode", def.HashMode, "Digest mode: sha256 or cryptojs-latin1 (matches hashes recorded by the browser front-end)")
	metricsListen := fs.String("metrics-listen", "", "Serve Prometheus /metrics on this address while the command runs (useful with ui)")
	logLevel := fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", def.Log.Format, "Log format: console or json")
	logFile := fs.String("log-file", "", "Write logs to this file instead of stderr")
	registry.RegisterFlags(fs, registry.UsageCLI)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fmt.Fprintf(errOut, "usage: docnotary %s [backend flags] %s\n", name, argUsage)
		return nil, 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, 2
	}
	if err := cfg.Apply(fs); err != nil {
		fmt.Fprintln(errOut, err)
		return nil, 2
	}
	loc, err := (&config.Config{Timezone: *timezone}).Location()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, 2
	}
	mode, err := digest.ParseMode(*hashMode)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, 2
	}

	s := &session{args: fs.Args()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	s.ctx = ctx
	s.closers = append(s.closers, func() error { stop(); return nil })

	logOut := errOut
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(errOut, "open log file: %v\n", err)
			s.close()
			return nil, 1
		}
		logOut = f
		s.closers = append(s.closers, f.Close)
	} else if name == "ui" {
		// Log lines would tear the screen.
		logOut = io.Discard
	}
	log := observability.NewLogger("docnotary", version, logOut, observability.LogOptions{Level: *logLevel, Format: *logFormat}).
		WithBackend(*backendName)

	tracerProvider, shutdownTracing, err := observability.InitTracing(ctx, "docnotary", version)
	if err != nil {
		log.Warn(fmt.Sprintf("tracing disabled: %v", err))
	} else {
		s.closers = append(s.closers, func() error { return shutdownTracing(context.Background()) })
	}

	metrics := observability.NewMetrics()
	if *metricsListen != "" {
		lis, err := net.Listen("tcp", *metricsListen)
		if err != nil {
			fmt.Fprintf(errOut, "metrics listener: %v\n", err)
			s.close()
			return nil, 1
		}
		hs := &http.Server{Handler: metricsMux(metrics), ReadHeaderTimeout: 5 * time.Second}
		go func() { _ = hs.Serve(lis) }()
		s.closers = append(s.closers, hs.Close)
	}

	backend, closeFn, err := registry.Open(ctx, *backendName, registry.UsageCLI, registry.Env{Logger: log})
	if err != nil {
		fmt.Fprintf(errOut, "open backend: %v\n", err)
		s.close()
		return nil, 1
	}
	if closeFn != nil {
		s.closers = append(s.closers, closeFn)
	}
	s.backend = backend

	if notifier == nil {
		notifier = controller.NotifierFunc(func(msg string) { fmt.Fprintln(errOut, msg) })
	}
	opts := []controller.Option{
		controller.WithNotifier(notifier),
		controller.WithLocation(loc),
		controller.WithLogger(log),
		controller.WithMetrics(metrics),
		controller.WithHashMode(mode),
		controller.WithAccountIndex(*accountIndex),
		controller.WithClientOptions(
			notary.WithGasLimit(*gasLimit),
			notary.WithCallTimeout(*callTimeout),
			notary.WithTracerProvider(tracerProvider),
		),
	}
	if *account != "" {
		opts = append(opts, controller.WithAccount(model.Account(*account)))
	}
	s.ctrl, err = controller.New(ctx, backend, opts...)
	if err != nil {
		fmt.Fprintf(errOut, "connect: %v\n", err)
		s.close()
		return nil, 1
	}
	return s, 0
}

func metricsMux(m *observability.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
