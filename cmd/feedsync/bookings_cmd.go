package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/social"
)

func newBookingsCmd(c *cli) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:     "bookings",
		Short:   "List bookings",
		GroupID: GroupRead,
		Args:    cobra.NoArgs,
		Example: `  feedsync bookings              # Recent bookings
  feedsync bookings --user u2    # Bookings hosted by u2
  feedsync bookings create --at 2026-11-20T18:00:00Z --limit 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			soc := c.app.soc
			var (
				list  []remote.Booking
				title = "Recent bookings"
				err   error
			)
			if user != "" {
				list, err = soc.UserBookings(ctx, user)
				title = "Bookings hosted by " + user
			} else {
				list, err = soc.RecentBookings(ctx)
			}
			if err != nil {
				return err
			}
			return c.emit(cmd, list, func() {
				printBookings(cmd.OutOrStdout(), title, list, soc.Session().Username)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "list bookings hosted by this user id")
	cmd.AddCommand(newBookingCreateCmd(c))
	cmd.AddCommand(newBookingDeleteCmd(c))
	return cmd
}

func newBookingCreateCmd(c *cli) *cobra.Command {
	var (
		at    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a booking hosted by the session user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			b, err := c.app.soc.CreateBooking(cmd.Context(), social.NewBooking{DateAndTime: when, UserLimit: limit})
			if err != nil {
				return err
			}
			return c.emit(cmd, b, func() {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("created ") + bookingLine(b, c.app.soc.Session().Username))
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "start time, RFC 3339 (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum attendees, 0 for no limit")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newBookingDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.soc.DeleteBooking(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("deleted " + args[0]))
			return nil
		},
	}
}
