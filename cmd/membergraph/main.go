package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hanpama/membergraph/internal/config"
	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/introspection"
	"github.com/hanpama/membergraph/internal/logging"
	"github.com/hanpama/membergraph/internal/metrics"
	"github.com/hanpama/membergraph/internal/otel"
	"github.com/hanpama/membergraph/internal/resolvers"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/server"
	"github.com/hanpama/membergraph/internal/store"
	"github.com/hanpama/membergraph/internal/store/memstore"
	"github.com/hanpama/membergraph/internal/store/sqlstore"
)

const rootUsage = `membergraph: batched GraphQL server for users, profiles and posts

USAGE:
  membergraph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  migrate          Apply SQL migrations to a database
  print-schema     Print the executable schema as SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>               YAML configuration file
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.timeout <duration>   Per-request timeout, e.g. 10s (default: 10s)
  -graphql.max-depth N         Maximum operation depth (default: 5)
  -graphql.max-batch N         Maximum keys per batch call, 0 for unbounded
  -graphql.introspection <bool> Answer __schema and __type queries (default: true)
  -store.driver <name>         memory, sqlite3 or postgres (default: memory)
  -store.dsn <dsn>             Data source name for SQL drivers
  -store.migrate               Apply migrations before serving
  -store.seed <file>           YAML seed file loaded at startup
  -log.level <level>           debug, info, warn or error (default: info)
  -log.format <format>         text or json (default: text)
  -metrics.enabled <bool>      Serve Prometheus metrics (default: true)
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: membergraph)
Flags override values from the configuration file.
`

const migrateUsage = `migrate FLAGS:
  -config <file>           YAML configuration file
  -store.driver <name>     sqlite3 or postgres
  -store.dsn <dsn>         Data source name
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>   Write SDL to file (default: stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "membergraph:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "migrate":
		return cmdMigrate(ctx, cmdArgs, stdout, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "migrate":
		fmt.Fprint(stdout, migrateUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// configFlags binds the flags shared by serve and migrate. Values parsed
// into the scratch config overwrite the loaded file only for flags that were
// actually set.
type configFlags struct {
	fs      *flag.FlagSet
	path    string
	scratch config.Config
	apply   map[string]func(dst, src *config.Config)
}

func newConfigFlags(name string, full bool) *configFlags {
	c := &configFlags{
		fs:      flag.NewFlagSet(name, flag.ContinueOnError),
		scratch: config.Default(),
		apply:   map[string]func(dst, src *config.Config){},
	}
	c.fs.SetOutput(new(bytes.Buffer))
	c.fs.StringVar(&c.path, "config", "", "YAML configuration file")

	sc := &c.scratch
	c.bind("store.driver", func(d, s *config.Config) { d.Store.Driver = s.Store.Driver })
	c.fs.StringVar(&sc.Store.Driver, "store.driver", sc.Store.Driver, "Store driver")
	c.bind("store.dsn", func(d, s *config.Config) { d.Store.DSN = s.Store.DSN })
	c.fs.StringVar(&sc.Store.DSN, "store.dsn", sc.Store.DSN, "Data source name")
	if !full {
		return c
	}
	c.bind("server.addr", func(d, s *config.Config) { d.Server.Addr = s.Server.Addr })
	c.fs.StringVar(&sc.Server.Addr, "server.addr", sc.Server.Addr, "HTTP listen address")
	c.bind("server.pretty", func(d, s *config.Config) { d.Server.Pretty = s.Server.Pretty })
	c.fs.BoolVar(&sc.Server.Pretty, "server.pretty", sc.Server.Pretty, "Pretty-print JSON responses")
	c.bind("server.timeout", func(d, s *config.Config) { d.Server.Timeout = s.Server.Timeout })
	c.fs.DurationVar(&sc.Server.Timeout, "server.timeout", sc.Server.Timeout, "Per-request timeout")
	c.bind("graphql.max-depth", func(d, s *config.Config) { d.GraphQL.MaxDepth = s.GraphQL.MaxDepth })
	c.fs.IntVar(&sc.GraphQL.MaxDepth, "graphql.max-depth", sc.GraphQL.MaxDepth, "Maximum operation depth")
	c.bind("graphql.max-batch", func(d, s *config.Config) { d.GraphQL.MaxBatch = s.GraphQL.MaxBatch })
	c.fs.IntVar(&sc.GraphQL.MaxBatch, "graphql.max-batch", sc.GraphQL.MaxBatch, "Maximum keys per batch")
	c.bind("graphql.introspection", func(d, s *config.Config) { d.GraphQL.Introspection = s.GraphQL.Introspection })
	c.fs.BoolVar(&sc.GraphQL.Introspection, "graphql.introspection", sc.GraphQL.Introspection, "Enable introspection")
	c.bind("store.migrate", func(d, s *config.Config) { d.Store.Migrate = s.Store.Migrate })
	c.fs.BoolVar(&sc.Store.Migrate, "store.migrate", sc.Store.Migrate, "Apply migrations before serving")
	c.bind("store.seed", func(d, s *config.Config) { d.Store.Seed = s.Store.Seed })
	c.fs.StringVar(&sc.Store.Seed, "store.seed", sc.Store.Seed, "YAML seed file")
	c.bind("log.level", func(d, s *config.Config) { d.Log.Level = s.Log.Level })
	c.fs.StringVar(&sc.Log.Level, "log.level", sc.Log.Level, "Log level")
	c.bind("log.format", func(d, s *config.Config) { d.Log.Format = s.Log.Format })
	c.fs.StringVar(&sc.Log.Format, "log.format", sc.Log.Format, "Log format")
	c.bind("metrics.enabled", func(d, s *config.Config) { d.Metrics.Enabled = s.Metrics.Enabled })
	c.fs.BoolVar(&sc.Metrics.Enabled, "metrics.enabled", sc.Metrics.Enabled, "Serve Prometheus metrics")
	c.bind("otel.endpoint", func(d, s *config.Config) { d.Otel.Endpoint = s.Otel.Endpoint })
	c.fs.StringVar(&sc.Otel.Endpoint, "otel.endpoint", sc.Otel.Endpoint, "OTLP collector endpoint")
	c.bind("otel.service", func(d, s *config.Config) { d.Otel.Service = s.Otel.Service })
	c.fs.StringVar(&sc.Otel.Service, "otel.service", sc.Otel.Service, "OpenTelemetry service name")
	return c
}

func (c *configFlags) bind(name string, fn func(dst, src *config.Config)) { c.apply[name] = fn }

// load parses args and returns the validated configuration.
func (c *configFlags) load(args []string) (config.Config, error) {
	if err := c.fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.path)
	if err != nil {
		return cfg, err
	}
	c.fs.Visit(func(f *flag.Flag) {
		if fn := c.apply[f.Name]; fn != nil {
			fn(&cfg, &c.scratch)
		}
	})
	return cfg, cfg.Validate()
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	flags := newConfigFlags("serve", true)
	cfg, err := flags.load(args)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	a, err := newApp(ctx, cfg, bus, logger)
	if err != nil {
		return err
	}
	defer a.close()

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.serve(ctx, lis)
}

// app is a fully wired server: store, runtime, handler and subscribers.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	handler http.Handler
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, bus *eventbus.Bus, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	h, err := a.wire(ctx, bus)
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = h
	return a, nil
}

func (a *app) wire(ctx context.Context, bus *eventbus.Bus) (http.Handler, error) {
	cfg, logger := a.cfg, a.logger
	unsubscribeLogs := logging.Subscribe(bus, logger)
	a.closers = append(a.closers, func(context.Context) error { unsubscribeLogs(); return nil })

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	if cfg.Store.Seed != "" {
		n, err := seedFile(ctx, st, cfg.Store.Seed)
		if err != nil {
			return nil, err
		}
		logger.Info("store seeded", "file", cfg.Store.Seed, "users", n)
	}

	shutdownTracing, err := otel.Setup(ctx, bus, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	sch, err := resolvers.LoadSchema()
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	rt := resolvers.NewRuntime(st, sch, resolvers.WithLoaderOptions(dataloader.WithMaxBatch(cfg.GraphQL.MaxBatch)))
	var exec executor.Runtime = rt
	if cfg.GraphQL.Introspection {
		w, err := introspection.Wrap(rt, sch)
		if err != nil {
			return nil, fmt.Errorf("introspection: %w", err)
		}
		exec, sch = w.Runtime, w.Schema
	}

	sopts := []server.Option{
		server.WithMaxDepth(cfg.GraphQL.MaxDepth),
		server.WithRequestScope(rt.WithLoaders),
		server.WithTimeout(cfg.Server.Timeout),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.CORS) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORS...))
	}
	h, err := server.New(exec, sch, sopts...)
	if err != nil {
		return nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		unsubscribeMetrics := metrics.New(reg).Subscribe(bus)
		a.closers = append(a.closers, func(context.Context) error { unsubscribeMetrics(); return nil })
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}
	return mux, nil
}

// serve answers on lis until ctx is done, then drains in-flight requests.
func (a *app) serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: a.handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	a.logger.Info("GraphQL server listening", "addr", lis.Addr().String(), "store", a.cfg.Store.Driver, "max_depth", a.cfg.GraphQL.MaxDepth)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.Timeout+time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return memstore.New(), nil
	}
	st, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := st.Migrate(); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

func seedFile(ctx context.Context, st store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed: %w", err)
	}
	defer f.Close()
	data, err := store.DecodeSeed(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	ids, err := store.Seed(ctx, st, data)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func cmdMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newConfigFlags("migrate", false)
	cfg, err := flags.load(args)
	if err != nil {
		fmt.Fprint(stderr, migrateUsage)
		return err
	}
	if cfg.Store.Driver == config.DriverMemory {
		return fmt.Errorf("migrate requires a SQL store driver")
	}
	st, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "migrations applied to %s store\n", cfg.Store.Driver)
	return nil
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}
	sch, err := resolvers.LoadSchema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
