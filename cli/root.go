// Package cli is the hnreader command tree.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/redis/go-redis/v9"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/filestore"
	"github.com/danielmmetz/hn-reader/hn"
	"github.com/danielmmetz/hn-reader/redisstore"
	"github.com/danielmmetz/hn-reader/saved"
	"github.com/danielmmetz/hn-reader/store"
)

const envPrefix = "HNREADER"

// Config holds the flags shared by every command.
type Config struct {
	BaseURL     string
	RateLimit   float64
	Concurrency int
	Storage     string
	StoragePath string
	RedisAddr   string
	RedisPrefix string
	LogLevel    string

	Out    io.Writer
	ErrOut io.Writer
	Now    func() time.Time
}

func (c *Config) register(fs *flag.FlagSet) {
	fs.StringVar(&c.BaseURL, "base-url", hn.DefaultBaseURL, "Hacker News API base URL")
	fs.Float64Var(&c.RateLimit, "rate-limit", 0, "Max upstream requests per second (0 = unlimited)")
	fs.IntVar(&c.Concurrency, "concurrency", feed.DefaultConcurrency, "Max concurrent item requests per batch")
	fs.StringVar(&c.Storage, "storage", "file", "Saved-items backend: file, sqlite, redis or memory")
	fs.StringVar(&c.StoragePath, "storage-path", "", "Directory (file) or database file (sqlite) for saved items")
	fs.StringVar(&c.RedisAddr, "redis-addr", "localhost:6379", "Redis address for the redis backend")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", redisstore.DefaultPrefix, "Key and channel prefix for the redis backend")
	fs.StringVar(&c.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(envPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	}
}

// New builds the root command writing to out and errOut.
func New(out, errOut io.Writer) *ffcli.Command {
	cfg := &Config{Out: out, ErrOut: errOut, Now: time.Now}
	fs := flag.NewFlagSet("hnreader", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cfg.register(fs)
	fs.String("config", "", "Config file (plain key value lines)")

	return &ffcli.Command{
		Name:       "hnreader",
		ShortUsage: "hnreader [flags] <subcommand> [flags] [args...]",
		ShortHelp:  "Read Hacker News and keep a list of saved stories.",
		FlagSet:    fs,
		Options:    options(),
		Subcommands: []*ffcli.Command{
			serveCommand(cfg),
			feedCommand(cfg, hn.FeedTop),
			feedCommand(cfg, hn.FeedNew),
			commentsCommand(cfg),
			readCommand(cfg),
			savedCommand(cfg),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

// setup applies the log level; every command's Exec calls it first.
func (c *Config) setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	slog.SetLogLoggerLevel(level)
	return nil
}

func (c *Config) client() *hn.Client {
	return hn.NewClient(hn.Options{BaseURL: c.BaseURL, RateLimit: c.RateLimit})
}

func (c *Config) repository() *feed.Repository {
	return feed.NewRepository(c.client(), c.Concurrency)
}

// backend is an opened saved-items backend.
type backend struct {
	storage  saved.Storage
	notifier saved.Notifier
	closers  []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend opens the configured storage. Watchers are only started when
// follow is set, so one-shot commands do not pay for them.
func (c *Config) openBackend(ctx context.Context, follow bool) (*backend, error) {
	switch c.Storage {
	case "memory":
		b := &backend{storage: saved.NewMemoryStorage()}
		if follow {
			b.notifier = saved.NewBus()
		}
		return b, nil

	case "file":
		dir := c.StoragePath
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("locate config dir: %w", err)
			}
			dir = filepath.Join(base, "hnreader")
		}
		s, err := filestore.New(dir)
		if err != nil {
			return nil, err
		}
		b := &backend{storage: s}
		if follow {
			w, err := filestore.NewWatcher(dir)
			if err != nil {
				return nil, err
			}
			b.notifier = w
			b.closers = append(b.closers, w.Close)
		}
		return b, nil

	case "sqlite":
		path := c.StoragePath
		if path == "" {
			path = "hnreader.db"
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		kv := store.NewKV(db)
		b := &backend{storage: kv, closers: []func() error{db.Close}}
		if follow {
			b.notifier = store.NewWatcher(kv, store.DefaultPollInterval)
		}
		return b, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		rs := redisstore.New(client, c.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", c.RedisAddr, err)
		}
		// Redis needs an explicit publish even from one-shot commands.
		return &backend{storage: rs, notifier: rs, closers: []func() error{client.Close}}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q: must be file, sqlite, redis or memory", c.Storage)
	}
}

// openStore opens the backend and the saved store on top of it.
func (c *Config) openStore(ctx context.Context, follow bool) (*saved.Store, func() error, error) {
	b, err := c.openBackend(ctx, follow)
	if err != nil {
		return nil, nil, err
	}
	s, err := saved.New(ctx, b.storage, b.notifier)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return s, func() error {
		s.Close()
		return b.Close()
	}, nil
}

func parseID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one item id, got %d arguments", len(args))
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", args[0])
	}
	return id, nil
}
