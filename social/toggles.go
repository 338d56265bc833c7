package social

import (
	"context"
	"errors"
	"sync"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

func (c *Client) toggleOptions(opts feedsync.ToggleOptions) feedsync.ToggleOptions {
	if opts.Logger == nil {
		opts.Logger = c.log
	}
	if opts.Hooks == nil {
		opts.Hooks = c.hooks
	}
	return opts
}

// LikeToggle is the session user's like on post.
func (c *Client) LikeToggle(post remote.Post, opts feedsync.ToggleOptions) *feedsync.Toggle {
	send := func(ctx context.Context, want bool) error {
		_, err := c.SetLiked(ctx, post.ID, want)
		return err
	}
	return feedsync.NewToggle(post.LikedBy(c.session.UserID), send, c.toggleOptions(opts))
}

// SaveToggle is the session user's save of post. saveRecordID is the
// existing save record, empty when the post is not saved.
func (c *Client) SaveToggle(post remote.Post, saveRecordID string, opts feedsync.ToggleOptions) *feedsync.Toggle {
	var (
		mu     sync.Mutex
		saveID = saveRecordID
	)
	send := func(ctx context.Context, want bool) error {
		if want {
			s, err := c.SavePost(ctx, post.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			saveID = s.ID
			mu.Unlock()
			return nil
		}
		mu.Lock()
		id := saveID
		mu.Unlock()
		if err := c.DeleteSave(ctx, id); err != nil {
			return err
		}
		mu.Lock()
		saveID = ""
		mu.Unlock()
		return nil
	}
	return feedsync.NewToggle(saveRecordID != "", send, c.toggleOptions(opts))
}

// AttendToggle is the session user's attendance of booking. A write that
// finds the booking already in the wanted state counts as committed.
func (c *Client) AttendToggle(booking remote.Booking, opts feedsync.ToggleOptions) *feedsync.Toggle {
	send := func(ctx context.Context, want bool) error {
		var err error
		if want {
			_, err = c.AttendBooking(ctx, booking.ID)
		} else {
			_, err = c.LeaveBooking(ctx, booking.ID)
		}
		if errors.Is(err, feedsync.ErrStaleWrite) {
			c.log.Debug("attendance already settled", feedsync.Fields{"booking": booking.ID, "attending": want})
			return nil
		}
		return err
	}
	return feedsync.NewToggle(booking.Attending(c.session.Username), send, c.toggleOptions(opts))
}
