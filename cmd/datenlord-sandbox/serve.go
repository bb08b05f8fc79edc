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
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/datenlord/datenlord_sdk_go/internal/config"
	"github.com/datenlord/datenlord_sdk_go/internal/devseed"
	"github.com/datenlord/datenlord_sdk_go/internal/localfs"
	"github.com/datenlord/datenlord_sdk_go/internal/logging"
	"github.com/datenlord/datenlord_sdk_go/internal/server"
	"github.com/datenlord/datenlord_sdk_go/internal/sqlitefs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs/mock"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var file string
	d := config.DefaultServer()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the filesystem service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewServerLoader(file)
			v := loader.Viper()
			bindings := map[string]string{
				"addr":      "addr",
				"backend":   "backend",
				"root":      "root",
				"db_path":   "db",
				"seed":      "seed",
				"token":     "token",
				"latency":   "latency",
				"fail":      "fail",
				"log.level": "log-level",
			}
			for key, flag := range bindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("bind --%s: %w", flag, err)
				}
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, loader, cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&file, "config", "", "TOML configuration file, watched for log level changes")
	f.String("addr", d.Addr, "listen address")
	f.String("backend", d.Backend, "storage backend: mem, local or sqlite")
	f.String("root", "", "host directory for the local backend")
	f.String("db", "", "database file for the sqlite backend")
	f.String("seed", "", "JSON seed file applied on start")
	f.String("token", "", "require this X-Service-Token on every operation")
	f.Duration("latency", 0, "artificial latency added to every operation")
	f.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	f.String("log-level", d.Log.Level, "log level")
	return cmd
}

func serve(ctx context.Context, loader *config.ServerLoader, cfg *config.ServerConfig, out io.Writer) error {
	lc := cfg.Logging()
	zerolog.SetGlobalLevel(lc.Level)
	lc.Level = zerolog.TraceLevel
	log := logging.New(lc)

	fail, err := server.ParseFailConfig(cfg.Fail)
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("close backend")
		}
	}()

	loader.Watch(func(next *config.ServerConfig, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("config reload failed")
			return
		}
		lvl := next.Logging().Level
		zerolog.SetGlobalLevel(lvl)
		log.Info().Str("level", lvl.String()).Msg("log level updated")
	})

	handler := server.New(backend,
		server.WithLogger(log),
		server.WithToken(cfg.Token),
		server.WithLatency(cfg.Latency),
		server.WithFailure(fail),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("backend", cfg.Backend).
		Dur("latency", cfg.Latency).
		Str("fail", fail.String()).
		Msg("datenlord-sandbox listening")
	printExports(out, ln.Addr().String(), cfg.Token)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openBackend builds the configured backend and applies the seed file.
func openBackend(ctx context.Context, cfg *config.ServerConfig, log zerolog.Logger) (dlfs.Backend, error) {
	var (
		b   dlfs.Backend
		err error
	)
	switch cfg.Backend {
	case config.ModeMem:
		b = mock.New()
	case config.ModeLocal:
		b, err = localfs.New(cfg.Root, log)
	case config.ModeSQLite:
		b, err = sqlitefs.Open(ctx, cfg.DBPath, log)
	default:
		err = fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Seed != "" {
		entries, err := devseed.Load(cfg.Seed)
		if err == nil {
			err = devseed.Apply(ctx, b, entries)
		}
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("seed %s: %w", cfg.Seed, err)
		}
		log.Info().Int("entries", len(entries)).Str("file", cfg.Seed).Msg("seed applied")
	}
	return b, nil
}

func printExports(out io.Writer, addr, token string) {
	host := addr
	if strings.HasPrefix(host, ":") || strings.HasPrefix(host, "[::]:") || strings.HasPrefix(host, "0.0.0.0:") {
		host = "localhost:" + host[strings.LastIndex(host, ":")+1:]
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "export DATENLORD_MODE=http\n")
	fmt.Fprintf(out, "export DATENLORD_ENDPOINT=http://%s\n", host)
	if token != "" {
		fmt.Fprintf(out, "export DATENLORD_TOKEN=%s\n", token)
	}
	fmt.Fprintln(out)
}
