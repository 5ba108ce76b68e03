package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/format"
	"github.com/danielmmetz/hn-reader/saved"
)

func savedCommand(cfg *Config) *ffcli.Command {
	list := func(ctx context.Context, _ []string) error {
		if err := cfg.setup(); err != nil {
			return err
		}
		return withStore(ctx, cfg, false, func(s *saved.Store) error { return runSavedList(cfg, s) })
	}

	byID := func(name, usage, help string, run func(context.Context, *saved.Store, int) error) *ffcli.Command {
		return &ffcli.Command{
			Name:       name,
			ShortUsage: "hnreader saved " + usage,
			ShortHelp:  help,
			FlagSet:    flag.NewFlagSet("saved "+name, flag.ContinueOnError),
			Options:    options(),
			Exec: func(ctx context.Context, args []string) error {
				if err := cfg.setup(); err != nil {
					return err
				}
				id, err := parseID(args)
				if err != nil {
					return err
				}
				return withStore(ctx, cfg, false, func(s *saved.Store) error { return run(ctx, s, id) })
			},
		}
	}

	return &ffcli.Command{
		Name:       "saved",
		ShortUsage: "hnreader saved [list|add|rm|toggle|clear|watch] [args...]",
		ShortHelp:  "Manage saved stories.",
		FlagSet:    flag.NewFlagSet("saved", flag.ContinueOnError),
		Options:    options(),
		Subcommands: []*ffcli.Command{
			{
				Name:       "list",
				ShortUsage: "hnreader saved list",
				ShortHelp:  "List saved stories, most recent first.",
				FlagSet:    flag.NewFlagSet("saved list", flag.ContinueOnError),
				Options:    options(),
				Exec:       list,
			},
			byID("add", "add <id>", "Save a story.", func(ctx context.Context, s *saved.Store, id int) error {
				return runSavedAdd(ctx, cfg, s, id)
			}),
			byID("rm", "rm <id>", "Remove a saved story.", func(ctx context.Context, s *saved.Store, id int) error {
				if s.Unsave(ctx, id) {
					success(cfg.Out, "removed %d", id)
				} else {
					info(cfg.Out, "%d was not saved", id)
				}
				return nil
			}),
			byID("toggle", "toggle <id>", "Save a story, or remove it if already saved.", func(ctx context.Context, s *saved.Store, id int) error {
				return runSavedToggle(ctx, cfg, s, id)
			}),
			{
				Name:       "clear",
				ShortUsage: "hnreader saved clear",
				ShortHelp:  "Remove every saved story.",
				FlagSet:    flag.NewFlagSet("saved clear", flag.ContinueOnError),
				Options:    options(),
				Exec: func(ctx context.Context, _ []string) error {
					if err := cfg.setup(); err != nil {
						return err
					}
					return withStore(ctx, cfg, false, func(s *saved.Store) error {
						n := s.Count()
						s.ClearAll(ctx)
						success(cfg.Out, "cleared %s", format.Pluralize(n, "story", "stories"))
						return nil
					})
				},
			},
			{
				Name:       "watch",
				ShortUsage: "hnreader saved watch",
				ShortHelp:  "Print the saved list whenever another process changes it.",
				FlagSet:    flag.NewFlagSet("saved watch", flag.ContinueOnError),
				Options:    options(),
				Exec: func(ctx context.Context, _ []string) error {
					if err := cfg.setup(); err != nil {
						return err
					}
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer stop()
					return withStore(ctx, cfg, true, func(s *saved.Store) error { return runSavedWatch(ctx, cfg, s) })
				},
			},
		},
		Exec: list,
	}
}

func withStore(ctx context.Context, cfg *Config, follow bool, fn func(*saved.Store) error) error {
	s, closeStore, err := cfg.openStore(ctx, follow)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(s)
}

func runSavedList(cfg *Config, s *saved.Store) error {
	snap := s.Snapshot()
	if snap.Len() == 0 {
		info(cfg.Out, "no saved stories")
		return nil
	}
	if err := renderSaved(cfg.Out, snap.Items(), cfg.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cfg.Out, "\n%s\n", format.Pluralize(snap.Len(), "saved story", "saved stories"))
	return nil
}

func fetchSavedItem(ctx context.Context, cfg *Config, id int) (saved.Item, error) {
	item, err := cfg.repository().Item(ctx, id)
	if err != nil {
		return saved.Item{}, err
	}
	if item == nil || item.Tombstoned() {
		return saved.Item{}, fmt.Errorf("item %d: %w", id, feed.ErrNotFound)
	}
	return saved.FromItem(*item), nil
}

func runSavedAdd(ctx context.Context, cfg *Config, s *saved.Store, id int) error {
	if s.IsSaved(id) {
		info(cfg.Out, "%d is already saved", id)
		return nil
	}
	item, err := fetchSavedItem(ctx, cfg, id)
	if err != nil {
		return err
	}
	s.Save(ctx, item)
	success(cfg.Out, "saved %d: %s", id, item.Title)
	return nil
}

func runSavedToggle(ctx context.Context, cfg *Config, s *saved.Store, id int) error {
	item, ok := s.Snapshot().Get(id)
	if !ok {
		var err error
		if item, err = fetchSavedItem(ctx, cfg, id); err != nil {
			return err
		}
	}
	if s.Toggle(ctx, item) {
		success(cfg.Out, "saved %d: %s", id, item.Title)
	} else {
		success(cfg.Out, "removed %d", id)
	}
	return nil
}

func runSavedWatch(ctx context.Context, cfg *Config, s *saved.Store) error {
	changes := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	info(cfg.Out, "watching %s saved stories, ctrl-c to stop", cfg.Storage)
	if err := runSavedList(cfg, s); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			fmt.Fprintln(cfg.Out)
			heading(cfg.Out, "saved stories changed")
			if err := runSavedList(cfg, s); err != nil {
				return err
			}
		}
	}
}
