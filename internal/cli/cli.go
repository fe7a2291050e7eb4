// Package cli implements the obtrack command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/obtrack-go/pkg/fetch"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
	"github.com/vnykmshr/obtrack-go/pkg/obtrack"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	config   *obtrack.Config
	fetchCfg *fetch.Config
	logCfg   logConfig
	store    string
	logger   logr.Logger
	errOut   io.Writer
}

// Run executes the obtrack command line. Command output goes to out, logs
// go to stderr. Flags default to the OBTRACK_* environment.
func Run(ctx context.Context, args []string, out io.Writer) error {
	config, err := obtrack.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	a := &app{
		config:   config,
		fetchCfg: fetch.NewDefaultConfig(),
		logger:   logr.Discard(),
		errOut:   os.Stderr,
	}

	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)

	return cmd.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "obtrack",
		Short:         "Inspect and exercise call tracking backed by a key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.configure()
		},
	}

	redis := a.config.Redis
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.store, "store", string(a.config.StoreType), "Backend store: redis or memory")
	flags.StringVar(&redis.Host, "redis-host", redis.Host, "Redis host")
	flags.IntVar(&redis.Port, "redis-port", redis.Port, "Redis port")
	flags.IntVar(&redis.DB, "redis-db", redis.DB, "Redis database number")
	flags.StringVar(&redis.Password, "redis-password", redis.Password, "Redis password")
	flags.DurationVar(&a.config.ResourceTTL, "ttl", a.config.ResourceTTL, "How long fetched content stays cached")
	addLogFlags(flags, &a.logCfg)

	cmd.AddCommand(
		a.storeCommand(),
		a.getCommand(),
		a.callsCommand(),
		a.replayCommand(),
		a.fetchCommand(),
		a.accessesCommand(),
		a.demoCommand(),
		a.serveCommand(),
	)
	return cmd
}

func (a *app) configure() error {
	logger, err := newLogger(a.logCfg, a.errOut)
	if err != nil {
		return err
	}
	a.logger = logger
	a.fetchCfg.Logger = logger

	a.config.WithStoreType(obtrack.StoreType(a.store)).
		WithLogger(obtrack.NewLogrLogger(logger))
	if a.logCfg.Verbosity > 0 {
		a.config.WithHooks(obtrack.NewLoggingHookBuilder().
			WithLogger(obtrack.NewLogrLogger(logger)).
			EnableAllLogging().
			Build())
	}
	return a.config.Validate()
}

// withService opens the configured store for the duration of fn
func (a *app) withService(fn func(svc *obtrack.Service) error) (err error) {
	svc, err := obtrack.New(a.config)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, svc.Close())
	}()
	return fn(svc)
}

func (a *app) storeCommand() *cobra.Command {
	var valueType string

	cmd := &cobra.Command{
		Use:   "store VALUE",
		Short: "Store a value under a new random key and print the key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[0], valueType)
			if err != nil {
				return err
			}
			return a.withService(func(svc *obtrack.Service) error {
				key, err := svc.Cache().Store(cmd.Context(), value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&valueType, "type", "string", "Value type: string, int or float")

	return cmd
}

func parseValue(raw, valueType string) (any, error) {
	switch valueType {
	case "string":
		return raw, nil
	case "int":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %s", valueType)
	}
}

func (a *app) getCommand() *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY, or (nil) when absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				value, found, err := retrieve(cmd.Context(), svc.Cache(), args[0], as)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "text", "Decode as: bytes, text, int or float")

	return cmd
}

func retrieve(ctx context.Context, cache *obtrack.Cache, key, as string) (value any, found bool, err error) {
	switch as {
	case "bytes":
		var raw []byte
		raw, found, err = cache.Get(ctx, key)
		value = fmt.Sprintf("%q", raw)
	case "text":
		value, found, err = cache.GetString(ctx, key)
	case "int":
		value, found, err = cache.GetInt(ctx, key)
	case "float":
		value, found, err = cache.GetFloat(ctx, key)
	default:
		err = fmt.Errorf("unsupported decoder: %s", as)
	}
	return value, found, err
}

func (a *app) callsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calls ID",
		Short: "Print how many times operation ID was called",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				count, err := svc.Tracker().CallCount(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func (a *app) replayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay ID",
		Short: "Print the recorded calls of operation ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				return svc.Reporter().Replay(cmd.Context(), args[0], cmd.OutOrStdout())
			})
		},
	}
}

func (a *app) fetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch URL through the resource cache and print its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				rc, err := svc.NewResourceCache(fetch.New(a.fetchCfg).Fetch)
				if err != nil {
					return err
				}
				content, err := rc.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&a.fetchCfg.RetryMax, "retries", a.fetchCfg.RetryMax, "Retries after a failed request")
	cmd.Flags().DurationVar(&a.fetchCfg.Timeout, "timeout", a.fetchCfg.Timeout, "Timeout of a single request")

	return cmd
}

func (a *app) accessesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accesses URL",
		Short: "Print how many times URL was requested through the resource cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				rc, err := svc.NewResourceCache(fetch.New(a.fetchCfg).Fetch)
				if err != nil {
					return err
				}
				accesses, err := rc.AccessCount(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), accesses)
				return nil
			})
		},
	}
}

func (a *app) demoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: `Store "foo", "bar" and 42, then replay the store history`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(func(svc *obtrack.Service) error {
				for _, v := range []any{"foo", "bar", 42} {
					if _, err := svc.Cache().Store(cmd.Context(), v); err != nil {
						return err
					}
				}
				return svc.Reporter().Replay(cmd.Context(), svc.Cache().OperationID(), cmd.OutOrStdout())
			})
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the debug endpoints, a caching fetch proxy and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())

			exporter, err := metrics.NewPrometheusExporter(
				metrics.NewDefaultConfig().WithDetailedTimings(true),
				&metrics.PrometheusConfig{Registry: registry},
			)
			if err != nil {
				return err
			}
			defer exporter.Close()

			a.config.WithMetricsExporter(exporter, "obtrack").
				WithMetricsReportingInterval(10 * time.Second)

			return a.withService(func(svc *obtrack.Service) error {
				handler, err := a.serveHandler(svc, registry)
				if err != nil {
					return err
				}
				return a.listen(cmd.Context(), addr, handler)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listening address")

	return cmd
}

// serveHandler mounts the debug handler, GET /fetch?resource=URL and /metrics
func (a *app) serveHandler(svc *obtrack.Service, registry *prometheus.Registry) (http.Handler, error) {
	rc, err := svc.NewResourceCache(fetch.New(a.fetchCfg).Fetch, obtrack.WithCoalescing())
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/", svc.DebugHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /fetch", func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		if resource == "" {
			http.Error(w, "resource query parameter is required", http.StatusBadRequest)
			return
		}
		content, err := rc.Get(r.Context(), resource)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, obtrack.ErrStoreUnavailable) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		_, _ = io.WriteString(w, content)
	})

	return mux, nil
}

func (a *app) listen(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errch := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "address", addr)
		errch <- srv.ListenAndServe()
	}()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
		a.logger.Info("gracefully shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errch; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
