package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/docnotary/internal/config"
	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/grpcnotary"
	"xdao.co/docnotary/notary/registry"

	_ "xdao.co/docnotary/notary/ethnotary"
	_ "xdao.co/docnotary/notary/memledger"
)

var version = "dev"

func main() {
	def := config.Default()
	fs := pflag.NewFlagSet("docnotary-grpcd", pflag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvVar+")")
	listen := fs.String("listen", "127.0.0.1:7778", "listen address")
	backend := fs.String("backend", def.Backend, "Notary backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	metricsListen := fs.String("metrics-listen", "", "Serve Prometheus /metrics on this address (empty disables)")
	logLevel := fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "json", "Log format: console or json")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err == nil {
		err = cfg.Apply(fs, registry.ForeignFlags(registry.UsageDaemon)...)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := observability.NewLogger("docnotary-grpcd", version, os.Stderr, observability.LogOptions{Level: *logLevel, Format: *logFormat}).
		WithBackend(*backend)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, shutdownTracing, err := observability.InitTracing(ctx, "docnotary-grpcd", version)
	if err != nil {
		log.Warn(fmt.Sprintf("tracing disabled: %v", err))
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	nb, closeFn, err := registry.Open(ctx, *backend, registry.UsageDaemon, registry.Env{Logger: log})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		hs := &http.Server{Addr: *metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics listener stopped")
			}
		}()
		defer hs.Close()
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpcnotary.UnaryInterceptor(log, metrics)))
	instrumented := notary.Instrument(nb,
		notary.WithLogger(log),
		notary.WithMetrics(metrics),
		notary.WithTracerProvider(tracerProvider),
	)
	grpcnotary.RegisterNotaryServer(s, &grpcnotary.Server{Backend: instrumented})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.Info(fmt.Sprintf("listening on %s", lis.Addr().String()))
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
