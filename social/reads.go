package social

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

// RecentPosts returns the newest RecentLimit posts.
func (c *Client) RecentPosts(ctx context.Context) ([]remote.Post, error) {
	return load(ctx, c, RecentPostsKey(), func(ctx context.Context) ([]remote.Post, error) {
		pg, err := c.remote.FetchPage(ctx, remote.Posts, feedsync.NoCursor, RecentLimit)
		if err != nil {
			return nil, err
		}
		return remote.DecodePosts(pg.Items)
	})
}

// RecentBookings returns the newest RecentLimit bookings.
func (c *Client) RecentBookings(ctx context.Context) ([]remote.Booking, error) {
	return load(ctx, c, RecentBookingsKey(), func(ctx context.Context) ([]remote.Booking, error) {
		pg, err := c.remote.FetchPage(ctx, remote.Bookings, feedsync.NoCursor, RecentLimit)
		if err != nil {
			return nil, err
		}
		return remote.DecodeBookings(pg.Items)
	})
}

func (c *Client) Post(ctx context.Context, id string) (remote.Post, error) {
	if id == "" {
		return remote.Post{}, feedsync.ValidationError("getById", remote.Posts, errors.New("empty post id"))
	}
	return load(ctx, c, PostKey(id), func(ctx context.Context) (remote.Post, error) {
		d, err := c.remote.GetByID(ctx, remote.Posts, id)
		if err != nil {
			return remote.Post{}, err
		}
		return remote.DecodePost(d)
	})
}

func (c *Client) User(ctx context.Context, id string) (remote.User, error) {
	if id == "" {
		return remote.User{}, feedsync.ValidationError("getById", remote.Users, errors.New("empty user id"))
	}
	return load(ctx, c, UserKey(id), func(ctx context.Context) (remote.User, error) {
		return c.getUser(ctx, id)
	})
}

// CurrentUser loads the session user's record.
func (c *Client) CurrentUser(ctx context.Context) (remote.User, error) {
	if err := c.requireSession("currentUser"); err != nil {
		return remote.User{}, err
	}
	return load(ctx, c, CurrentUserKey(), func(ctx context.Context) (remote.User, error) {
		return c.getUser(ctx, c.session.UserID)
	})
}

func (c *Client) getUser(ctx context.Context, id string) (remote.User, error) {
	d, err := c.remote.GetByID(ctx, remote.Users, id)
	if err != nil {
		return remote.User{}, err
	}
	return remote.DecodeUser(d)
}

// UserPosts returns the posts created by userID.
func (c *Client) UserPosts(ctx context.Context, userID string) ([]remote.Post, error) {
	return load(ctx, c, UserPostsKey(userID), func(ctx context.Context) ([]remote.Post, error) {
		docs, err := c.remote.Where(ctx, remote.Posts, "creator", userID)
		if err != nil {
			return nil, err
		}
		return remote.DecodePosts(docs)
	})
}

// UserBookings returns the bookings created by userID, each with its creator
// attached. A creator that fails to load leaves its booking bare.
func (c *Client) UserBookings(ctx context.Context, userID string) ([]remote.Booking, error) {
	return load(ctx, c, UserBookingsKey(userID), func(ctx context.Context) ([]remote.Booking, error) {
		docs, err := c.remote.Where(ctx, remote.Bookings, "creator", userID)
		if err != nil {
			return nil, err
		}
		bookings, err := remote.DecodeBookings(docs)
		if err != nil {
			return nil, err
		}
		c.enrich(ctx, bookings)
		return bookings, nil
	})
}

func (c *Client) enrich(ctx context.Context, bookings []remote.Booking) {
	if len(bookings) == 0 {
		return
	}
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.CreatorID
	}
	users, err := remote.GetMany(ctx, c.remote, remote.Users, ids)
	if err != nil {
		c.log.Warn("booking creators partially loaded", feedsync.Fields{"err": err, "loaded": len(users)})
	}
	for i := range bookings {
		d, ok := users[bookings[i].CreatorID]
		if !ok {
			continue
		}
		u, err := remote.DecodeUser(d)
		if err != nil {
			c.log.Warn("booking creator rejected", feedsync.Fields{"booking": bookings[i].ID, "err": err})
			continue
		}
		bookings[i].Creator = &u
	}
}

// Explore returns the paginated post feed with its search override.
// Close it when the view goes away.
func (c *Client) Explore() (*feedsync.Feed[remote.Post], error) {
	pager, err := feedsync.NewPager(c.store, feedsync.PagerOptions[remote.Post]{
		Key: InfinitePostsKey(),
		Load: func(ctx context.Context, cur feedsync.Cursor) (feedsync.Page[remote.Post], error) {
			pg, err := c.remote.FetchPage(ctx, remote.Posts, cur, ExplorePage)
			if err != nil {
				return feedsync.Page[remote.Post]{}, err
			}
			return remote.DecodePostPage(pg)
		},
	})
	if err != nil {
		return nil, err
	}
	search, err := feedsync.NewSearch(c.store, feedsync.SearchOptions[remote.Post]{
		Key:      SearchPostsKey(),
		Debounce: c.debounce,
		Query: func(ctx context.Context, term string) ([]remote.Post, error) {
			docs, err := c.remote.Search(ctx, remote.Posts, term)
			if err != nil {
				return nil, err
			}
			return remote.DecodePosts(docs)
		},
	})
	if err != nil {
		return nil, err
	}
	return feedsync.NewFeed(pager, search)
}
