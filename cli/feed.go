package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/danielmmetz/hn-reader/feed"
	"github.com/danielmmetz/hn-reader/format"
	"github.com/danielmmetz/hn-reader/hn"
	"github.com/danielmmetz/hn-reader/readability"
)

func feedCommand(cfg *Config, feedType hn.FeedType) *ffcli.Command {
	fs := flag.NewFlagSet(string(feedType), flag.ContinueOnError)
	limit := fs.Int("limit", feed.DefaultLimit, "Stories per page")
	offset := fs.Int("offset", 0, "Stories to skip")

	return &ffcli.Command{
		Name:       string(feedType),
		ShortUsage: fmt.Sprintf("hnreader %s [-limit N] [-offset N]", feedType),
		ShortHelp:  fmt.Sprintf("List %s stories.", feedType),
		FlagSet:    fs,
		Options:    options(),
		Exec: func(ctx context.Context, _ []string) error {
			if err := cfg.setup(); err != nil {
				return err
			}
			return runFeed(ctx, cfg, feedType, *limit, *offset)
		},
	}
}

func runFeed(ctx context.Context, cfg *Config, feedType hn.FeedType, limit, offset int) error {
	page, err := cfg.repository().Page(ctx, feedType, limit, offset)
	if err != nil {
		return err
	}

	isSaved := func(int) bool { return false }
	if s, closeStore, err := cfg.openStore(ctx, false); err == nil {
		defer closeStore()
		isSaved = s.IsSaved
	}

	if err := renderStories(cfg.Out, page.Items, offset, isSaved, cfg.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cfg.Out, "\n%d of %s", len(page.Items), format.Pluralize(page.Total, "story", "stories"))
	if page.HasMore {
		fmt.Fprintf(cfg.Out, ", more with -offset %d", offset+max(limit, 1))
	}
	fmt.Fprintln(cfg.Out)
	return nil
}

func commentsCommand(cfg *Config) *ffcli.Command {
	fs := flag.NewFlagSet("comments", flag.ContinueOnError)
	more := fs.Int("more", 0, "Additional pages of replies to load after the first")

	return &ffcli.Command{
		Name:       "comments",
		ShortUsage: "hnreader comments [-more N] <id>",
		ShortHelp:  "Show the direct replies to a story.",
		FlagSet:    fs,
		Options:    options(),
		Exec: func(ctx context.Context, args []string) error {
			if err := cfg.setup(); err != nil {
				return err
			}
			id, err := parseID(args)
			if err != nil {
				return err
			}
			return runComments(ctx, cfg, id, *more)
		},
	}
}

func runComments(ctx context.Context, cfg *Config, id, more int) error {
	repo := cfg.repository()
	item, err := repo.Item(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %d: %w", id, feed.ErrNotFound)
	}

	session := feed.NewCommentSession(repo, id)
	defer session.Close()
	if err := session.Load(ctx); err != nil {
		return err
	}
	for i := 0; i < more && session.State().HasMore; i++ {
		if err := session.LoadMore(ctx); err != nil {
			return err
		}
	}

	state := session.State()
	heading(cfg.Out, item.Title)
	fmt.Fprintf(cfg.Out, "%s · %s\n\n", format.Pluralize(item.Score, "point", ""), format.Pluralize(state.Total, "reply", "replies"))
	now := cfg.Now()
	for _, c := range state.Items {
		renderComment(cfg.Out, c, now)
	}
	if state.HasMore {
		info(cfg.Out, "more replies available, rerun with -more %d", more+1)
	}
	return nil
}

func readCommand(cfg *Config) *ffcli.Command {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	return &ffcli.Command{
		Name:       "read",
		ShortUsage: "hnreader read <id>",
		ShortHelp:  "Print a story's linked article in reader mode.",
		FlagSet:    fs,
		Options:    options(),
		Exec: func(ctx context.Context, args []string) error {
			if err := cfg.setup(); err != nil {
				return err
			}
			id, err := parseID(args)
			if err != nil {
				return err
			}
			return runRead(ctx, cfg, readability.NewExtractor(nil), id)
		},
	}
}

type extractor interface {
	Extract(ctx context.Context, url string) (*readability.Article, error)
}

func runRead(ctx context.Context, cfg *Config, ex extractor, id int) error {
	item, err := cfg.repository().Item(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %d: %w", id, feed.ErrNotFound)
	}

	heading(cfg.Out, item.Title)
	if item.URL == "" {
		// Ask HN and friends carry their body inline.
		fmt.Fprintf(cfg.Out, "\n%s\n", format.PlainText(item.Text))
		return nil
	}

	article, err := ex.Extract(ctx, item.URL)
	if errors.Is(err, readability.ErrNoContent) {
		info(cfg.Out, "nothing readable at %s", item.URL)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", item.URL, err)
	}
	if article.Byline != "" {
		fmt.Fprintf(cfg.Out, "%s\n", article.Byline)
	}
	fmt.Fprintf(cfg.Out, "%s\n\n%s\n", item.URL, article.TextContent)
	return nil
}
