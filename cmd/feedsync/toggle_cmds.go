package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

// flip toggles tg once and waits for the write. A failed write has already
// been reverted when the error comes back.
func (c *cli) flip(ctx context.Context, tg *feedsync.Toggle) (feedsync.Field, error) {
	tg.Toggle(ctx)
	wctx, cancel := context.WithTimeout(ctx, c.cfg.Remote.Timeout.Duration)
	defer cancel()
	err := tg.Wait(wctx)
	return tg.State(), err
}

func (c *cli) toggleOptions() feedsync.ToggleOptions {
	return feedsync.ToggleOptions{
		OnChange: func(f feedsync.Field) {
			c.zl.Sugar().Debugw("toggle", "committed", f.Committed, "displayed", f.Displayed, "pending", f.Pending)
		},
	}
}

func newLikeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "like POST_ID",
		Short:   "Like or unlike a post",
		GroupID: GroupWrite,
		Args:    cobra.ExactArgs(1),
		Long: `Flip the session user's like on a post.

The new state is shown at once and written in the background. A failed
write restores the previous state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			soc := c.app.soc
			p, err := soc.Post(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := c.flip(cmd.Context(), soc.LikeToggle(p, c.toggleOptions()))
			if err != nil {
				return fmt.Errorf("like %s: %w", p.ID, err)
			}
			word := "unliked"
			if f.Committed {
				word = "liked"
			}
			fmt.Fprintln(cmd.OutOrStdout(), heart(f.Committed)+" "+word+" "+p.ID)
			return nil
		},
	}
}

func newSaveCmd(c *cli) *cobra.Command {
	var record string

	cmd := &cobra.Command{
		Use:     "save POST_ID",
		Short:   "Save a post, or unsave it with --record",
		GroupID: GroupWrite,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			soc := c.app.soc
			p, err := soc.Post(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := c.flip(cmd.Context(), soc.SaveToggle(p, record, c.toggleOptions()))
			if err != nil {
				return fmt.Errorf("save %s: %w", p.ID, err)
			}
			word := "unsaved"
			if f.Committed {
				word = "saved"
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(word)+" "+p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&record, "record", "", "existing save record id; unsaves the post")
	return cmd
}

func newAttendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "attend BOOKING_ID",
		Short:   "Join or leave a booking",
		GroupID: GroupWrite,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := c.app.rc.GetByID(ctx, remote.Bookings, args[0])
			if err != nil {
				return err
			}
			b, err := remote.DecodeBooking(d)
			if err != nil {
				return err
			}
			f, err := c.flip(ctx, c.app.soc.AttendToggle(b, c.toggleOptions()))
			if err != nil {
				return fmt.Errorf("attend %s: %w", b.ID, err)
			}
			word := "left"
			if f.Committed {
				word = "attending"
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(word)+" "+b.ID)
			return nil
		},
	}
}
