package datenlord_sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/internal/config"
	"github.com/datenlord/datenlord_sdk_go/internal/devseed"
	"github.com/datenlord/datenlord_sdk_go/internal/localfs"
	"github.com/datenlord/datenlord_sdk_go/internal/logging"
	"github.com/datenlord/datenlord_sdk_go/internal/sqlitefs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs/mock"
)

// Resolved modes returned by Init.
const (
	ModeHTTP   = config.ModeHTTP
	ModeMem    = config.ModeMem
	ModeLocal  = config.ModeLocal
	ModeSQLite = config.ModeSQLite
)

// Init creates a client from cfg and returns it with the resolved mode. A
// logger attached to ctx with logging.WithContext replaces the one built from
// the log settings. Every failure carries dlfs.CodeInitFailed.
func Init(ctx context.Context, cfg string) (*dlfs.Client, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", initError("init", err)
	}
	parsed, err := config.Parse(cfg)
	if err != nil {
		return nil, "", initError("parse config", err)
	}

	log := logging.New(parsed.Logging())
	if l := logging.FromContext(ctx); l.GetLevel() != zerolog.Disabled {
		log = *l
	}
	log = log.With().Str("component", "datenlord_sdk").Logger()

	mode, err := resolveMode(parsed)
	if err != nil {
		return nil, "", initError("resolve mode", err)
	}

	opts := []dlfs.Option{dlfs.WithLogger(log)}
	var client *dlfs.Client
	switch mode {
	case ModeHTTP:
		opts = append(opts,
			dlfs.WithTimeout(parsed.Timeout),
			dlfs.WithRetryPolicy(dlfs.RetryPolicy{
				MaxRetries: parsed.Retry.MaxRetries,
				BaseDelay:  parsed.Retry.BaseDelay,
				MaxDelay:   parsed.Retry.MaxDelay,
				Jitter:     parsed.Retry.Jitter,
			}),
		)
		if parsed.Token != "" {
			opts = append(opts, dlfs.WithToken(parsed.Token))
		}
		client, err = dlfs.New(parsed.Endpoint, opts...)
		if err != nil {
			return nil, "", initError("connect "+parsed.Endpoint, err)
		}
	case ModeLocal:
		fs, err := localfs.New(parsed.Root, log)
		if err != nil {
			return nil, "", initError("open local root", err)
		}
		client = dlfs.NewWithBackend(fs, opts...)
	case ModeSQLite:
		fs, err := sqlitefs.Open(ctx, parsed.DBPath, log)
		if err != nil {
			return nil, "", initError("open database", err)
		}
		client = dlfs.NewWithBackend(fs, opts...)
	case ModeMem:
		m := mock.New()
		if parsed.Seed != "" {
			entries, err := devseed.Load(parsed.Seed)
			if err != nil {
				return nil, "", initError("load seed", err)
			}
			if err := devseed.Apply(ctx, m, entries); err != nil {
				return nil, "", initError("apply seed", err)
			}
		}
		client = dlfs.NewWithBackend(m, opts...)
	}

	ev := log.Info().Str("mode", mode).Str("session", client.Session())
	if parsed.Name != "" {
		ev = ev.Str("name", parsed.Name)
	}
	ev.Msg("datenlord sdk initialised")
	return client, mode, nil
}

// NewFromEnv is Init with an empty configuration string, so every setting
// comes from DATENLORD_* variables or the file named by DATENLORD_CONFIG_FILE.
func NewFromEnv(ctx context.Context) (*dlfs.Client, string, error) {
	return Init(ctx, "")
}

func resolveMode(cfg *config.Config) (string, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	root := strings.TrimSpace(cfg.Root)
	dbPath := strings.TrimSpace(cfg.DBPath)

	switch cfg.Mode {
	case config.ModeAuto:
		switch {
		case endpoint != "":
			return ModeHTTP, nil
		case root != "":
			return ModeLocal, nil
		case dbPath != "":
			return ModeSQLite, nil
		}
		return ModeMem, nil
	case ModeHTTP:
		if endpoint == "" {
			return "", errors.New("mode http requires endpoint")
		}
	case ModeLocal:
		if root == "" {
			return "", errors.New("mode local requires root")
		}
	case ModeSQLite:
		if dbPath == "" {
			return "", errors.New("mode sqlite requires db_path")
		}
	case ModeMem:
	default:
		return "", fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
	return cfg.Mode, nil
}

func initError(msg string, err error) error {
	return &dlfs.Error{Code: dlfs.CodeInitFailed, Op: "init", Message: msg, Err: err}
}
