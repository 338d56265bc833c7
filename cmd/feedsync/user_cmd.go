package main

import (
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/social"
)

func newUserCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user [ID]",
		Short:   "Show a user, the session user by default",
		GroupID: GroupRead,
		Args:    cobra.MaximumNArgs(1),
		Example: `  feedsync user
  feedsync user u2 --posts
  feedsync user update --bio "trail runner"
  feedsync user award u2 --points 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			soc := c.app.soc

			var (
				u   remote.User
				err error
			)
			if len(args) == 0 {
				u, err = soc.CurrentUser(ctx)
			} else {
				u, err = soc.User(ctx, args[0])
			}
			if err != nil {
				return err
			}
			showPosts, _ := cmd.Flags().GetBool("posts")
			if !showPosts {
				return c.emit(cmd, u, func() { printUser(cmd.OutOrStdout(), u) })
			}
			posts, err := soc.UserPosts(ctx, u.ID)
			if err != nil {
				return err
			}
			return c.emit(cmd, posts, func() {
				printUser(cmd.OutOrStdout(), u)
				printPosts(cmd.OutOrStdout(), "Posts", posts, soc.Session().UserID)
			})
		},
	}

	cmd.Flags().Bool("posts", false, "also list the user's posts")
	cmd.AddCommand(newUserUpdateCmd(c))
	cmd.AddCommand(newUserAwardCmd(c))
	cmd.AddCommand(newUserRedeemCmd(c))
	return cmd
}

func newUserUpdateCmd(c *cli) *cobra.Command {
	var upd social.UserUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the session user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			upd.ID = c.app.soc.Session().UserID
			u, err := c.app.soc.UpdateUser(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return c.emit(cmd, u, func() { printUser(cmd.OutOrStdout(), u) })
		},
	}

	cmd.Flags().StringVar(&upd.Name, "name", "", "display name")
	cmd.Flags().StringVar(&upd.Bio, "bio", "", "profile text")
	cmd.Flags().StringVar(&upd.ImageURL, "image-url", "", "avatar URL")
	cmd.Flags().StringVar(&upd.ImageID, "image-id", "", "avatar file id")
	return cmd
}

func newUserAwardCmd(c *cli) *cobra.Command {
	var points, stars int

	cmd := &cobra.Command{
		Use:   "award ID",
		Short: "Add points or stars to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			soc := c.app.soc
			var (
				u   remote.User
				err error
			)
			if points != 0 {
				if u, err = soc.AddPoints(ctx, args[0], points); err != nil {
					return err
				}
			}
			if stars != 0 {
				if u, err = soc.AddStars(ctx, args[0], stars); err != nil {
					return err
				}
			}
			if points == 0 && stars == 0 {
				if u, err = soc.User(ctx, args[0]); err != nil {
					return err
				}
			}
			return c.emit(cmd, u, func() { printUser(cmd.OutOrStdout(), u) })
		},
	}

	cmd.Flags().IntVar(&points, "points", 0, "points to add (negative to subtract)")
	cmd.Flags().IntVar(&stars, "stars", 0, "stars to add (negative to subtract)")
	return cmd
}

func newUserRedeemCmd(c *cli) *cobra.Command {
	var points, stars int

	cmd := &cobra.Command{
		Use:   "redeem ID",
		Short: "Set a user's balance after a reward was redeemed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.soc.Redeem(cmd.Context(), args[0], points, stars)
			if err != nil {
				return err
			}
			return c.emit(cmd, u, func() { printUser(cmd.OutOrStdout(), u) })
		},
	}

	cmd.Flags().IntVar(&points, "points", 0, "remaining points")
	cmd.Flags().IntVar(&stars, "stars", 0, "remaining stars")
	return cmd
}
