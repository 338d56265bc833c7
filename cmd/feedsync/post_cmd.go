package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/feedsync/social"
)

func newPostCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post",
		Short:   "Show, create or delete posts",
		GroupID: GroupRead,
		Example: `  feedsync post show p01
  feedsync post create "first light" --tags "morning, sky"
  feedsync post delete p01 --image img-123`,
	}
	cmd.AddCommand(newPostShowCmd(c))
	cmd.AddCommand(newPostCreateCmd(c))
	cmd.AddCommand(newPostDeleteCmd(c))
	return cmd
}

func newPostShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.soc.Post(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(cmd, p, func() {
				printPost(cmd.OutOrStdout(), p, c.app.soc.Session().UserID)
			})
		},
	}
}

func newPostCreateCmd(c *cli) *cobra.Command {
	var (
		location string
		tags     string
		imageURL string
		imageID  string
	)

	cmd := &cobra.Command{
		Use:   "create CONTENT",
		Short: "Create a post as the session user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.soc.CreatePost(cmd.Context(), social.NewPost{
				Content:  args[0],
				Location: location,
				Tags:     social.ParseTags(tags),
				ImageURL: imageURL,
				ImageID:  imageID,
			})
			if err != nil {
				return err
			}
			return c.emit(cmd, p, func() {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("created ") + p.ID)
			})
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "where the post was taken")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "URL of the uploaded image")
	cmd.Flags().StringVar(&imageID, "image-id", "", "id of the uploaded image")
	return cmd
}

func newPostDeleteCmd(c *cli) *cobra.Command {
	var imageID string

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.soc.DeletePost(cmd.Context(), args[0], imageID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("deleted %s", args[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&imageID, "image", "", "id of the post's image (required)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
