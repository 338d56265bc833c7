package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFeedCmd(c *cli) *cobra.Command {
	var (
		pages  int
		recent bool
	)

	cmd := &cobra.Command{
		Use:     "feed",
		Short:   "Show the explore feed",
		GroupID: GroupRead,
		Args:    cobra.NoArgs,
		Long: `Show the explore feed, newest first.

Pages are loaded the way a scrolling view loads them: each end-of-list
trigger fetches one more page until the collection is exhausted.`,
		Example: `  feedsync feed             # First page
  feedsync feed -p 3        # Scroll three pages
  feedsync feed --recent    # The recent posts list instead
  feedsync feed --json      # Records as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			soc := c.app.soc
			viewer := soc.Session().UserID

			if recent {
				posts, err := soc.RecentPosts(ctx)
				if err != nil {
					return err
				}
				return c.emit(cmd, posts, func() {
					printPosts(cmd.OutOrStdout(), "Recent posts", posts, viewer)
				})
			}

			f, err := soc.Explore()
			if err != nil {
				return err
			}
			defer f.Close()
			for i := 0; i < pages; i++ {
				if err := f.NearEnd(ctx); err != nil {
					return err
				}
				if f.View().Exhausted {
					break
				}
			}
			v := f.View()
			return c.emit(cmd, v.Items, func() {
				printPosts(cmd.OutOrStdout(), "Explore", v.Items, viewer)
				if v.Exhausted {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("  end of feed"))
				}
			})
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")
	cmd.Flags().BoolVar(&recent, "recent", false, "show the recent posts list")
	return cmd
}

// emit prints v as JSON under --json and calls text otherwise.
func (c *cli) emit(cmd *cobra.Command, v any, text func()) error {
	if c.jsonOut {
		return printJSON(cmd.OutOrStdout(), v)
	}
	text()
	return nil
}
