package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search TERM...",
		Short:   "Search posts",
		GroupID: GroupRead,
		Args:    cobra.MinimumNArgs(1),
		Example: `  feedsync search coffee
  feedsync search "sunset pier" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			f, err := c.app.soc.Explore()
			if err != nil {
				return err
			}
			defer f.Close()

			f.SetTerm(term)
			wait := c.cfg.Feed.Debounce.Duration + c.cfg.Remote.Timeout.Duration
			v, err := awaitSearch(cmd.Context(), f, term, wait)
			if err != nil {
				return err
			}
			if v.Err != nil {
				return v.Err
			}
			return c.emit(cmd, v.Items, func() {
				printPosts(cmd.OutOrStdout(), fmt.Sprintf("Results for %q", term), v.Items, c.app.soc.Session().UserID)
			})
		},
	}
	return cmd
}

// awaitSearch polls the feed until the query for term has settled.
func awaitSearch(ctx context.Context, f *feedsync.Feed[remote.Post], term string, limit time.Duration) (feedsync.View[remote.Post], error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		v := f.View()
		if v.Mode == feedsync.ModeSearch && v.Term == term && !v.Loading {
			return v, nil
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return feedsync.View[remote.Post]{}, fmt.Errorf("search %q: %w", term, ctx.Err())
		}
	}
}
