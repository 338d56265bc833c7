package social

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

type NewPost struct {
	Content  string
	ImageURL string
	ImageID  string
	Location string
	Tags     []string
}

type PostUpdate struct {
	ID       string
	Content  string
	ImageURL string
	ImageID  string
	Location string
	Tags     []string
}

type NewBooking struct {
	DateAndTime time.Time
	UserLimit   int
	Attendees   []string
}

// UserUpdate changes profile fields. Empty fields are left as they are.
type UserUpdate struct {
	ID       string
	Name     string
	Bio      string
	ImageURL string
	ImageID  string
}

// ParseTags splits a comma separated tag line, dropping spaces and empties.
func ParseTags(s string) []string {
	s = strings.ReplaceAll(s, " ", "")
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *Client) run(ctx context.Context, m feedsync.Mutation) (remote.Document, error) {
	return feedsync.Exec[remote.Document](ctx, c.exec, m)
}

func mutation(op, resource, remoteOp string, doc remote.Document, inv ...feedsync.Pattern) feedsync.Mutation {
	return feedsync.Mutation{
		Op:          op,
		Resource:    resource,
		Payload:     call{op: remoteOp, doc: doc},
		Invalidates: inv,
	}
}

func required(op, resource, what, v string) error {
	if v == "" {
		return feedsync.ValidationError(op, resource, errors.New(what+" is required"))
	}
	return nil
}

// ==============================
// Posts
// ==============================

func (c *Client) CreatePost(ctx context.Context, p NewPost) (remote.Post, error) {
	if err := c.requireSession("createPost"); err != nil {
		return remote.Post{}, err
	}
	d, err := c.run(ctx, mutation("createPost", remote.Posts, remote.OpCreate, remote.Document{
		"creator":  c.session.UserID,
		"content":  p.Content,
		"imageURL": p.ImageURL,
		"imageId":  p.ImageID,
		"location": p.Location,
		"tags":     nonNil(p.Tags),
	}, feedsync.ResourcePattern(ResRecentPosts)))
	if err != nil {
		return remote.Post{}, err
	}
	return remote.DecodePost(d)
}

func (c *Client) UpdatePost(ctx context.Context, p PostUpdate) (remote.Post, error) {
	if err := required("updatePost", remote.Posts, "post id", p.ID); err != nil {
		return remote.Post{}, err
	}
	d, err := c.run(ctx, mutation("updatePost", remote.Posts, remote.OpUpdate, remote.Document{
		remote.FieldID: p.ID,
		"content":      p.Content,
		"imageURL":     p.ImageURL,
		"imageId":      p.ImageID,
		"location":     p.Location,
		"tags":         nonNil(p.Tags),
	}, feedsync.KeyPattern(PostKey(p.ID))))
	if err != nil {
		return remote.Post{}, err
	}
	return remote.DecodePost(d)
}

// DeletePost needs the image id as well so the caller can release the file.
func (c *Client) DeletePost(ctx context.Context, postID, imageID string) error {
	if err := required("deletePost", remote.Posts, "post id", postID); err != nil {
		return err
	}
	if err := required("deletePost", remote.Posts, "image id", imageID); err != nil {
		return err
	}
	_, err := c.run(ctx, mutation("deletePost", remote.Posts, remote.OpDelete,
		remote.Document{remote.FieldID: postID},
		feedsync.ResourcePattern(ResRecentPosts)))
	return err
}

// LikePost replaces the post's likes with likes.
func (c *Client) LikePost(ctx context.Context, postID string, likes []string) (remote.Post, error) {
	if err := required("likePost", remote.Posts, "post id", postID); err != nil {
		return remote.Post{}, err
	}
	d, err := c.run(ctx, mutation("likePost", remote.Posts, remote.OpUpdate,
		remote.Document{remote.FieldID: postID, "likes": nonNil(likes)},
		postTouched()...))
	if err != nil {
		return remote.Post{}, err
	}
	return remote.DecodePost(d)
}

// SetLiked adds or removes the session user in the post's likes, reading the
// current likes first so concurrent likers are kept.
func (c *Client) SetLiked(ctx context.Context, postID string, liked bool) (remote.Post, error) {
	if err := c.requireSession("likePost"); err != nil {
		return remote.Post{}, err
	}
	if err := required("likePost", remote.Posts, "post id", postID); err != nil {
		return remote.Post{}, err
	}
	uid := c.session.UserID
	d, err := c.run(ctx, feedsync.Mutation{
		Op:          "likePost",
		Resource:    remote.Posts,
		Invalidates: append(postTouched(), feedsync.KeyPattern(PostKey(postID))),
		Do: func(ctx context.Context) (any, error) {
			cur, err := c.remote.GetByID(ctx, remote.Posts, postID)
			if err != nil {
				return nil, err
			}
			post, err := remote.DecodePost(cur)
			if err != nil {
				return nil, err
			}
			likes := slices.DeleteFunc(slices.Clone(post.Likes), func(id string) bool { return id == uid })
			if liked {
				likes = append(likes, uid)
			}
			return c.remote.Mutate(ctx, remote.Posts, remote.OpUpdate,
				remote.Document{remote.FieldID: postID, "likes": nonNil(likes)})
		},
	})
	if err != nil {
		return remote.Post{}, err
	}
	return remote.DecodePost(d)
}

// SavePost records that the session user saved postID.
func (c *Client) SavePost(ctx context.Context, postID string) (remote.Save, error) {
	if err := c.requireSession("savePost"); err != nil {
		return remote.Save{}, err
	}
	if err := required("savePost", remote.Saves, "post id", postID); err != nil {
		return remote.Save{}, err
	}
	inv := append([]feedsync.Pattern{feedsync.KeyPattern(PostKey(postID))}, postTouched()...)
	d, err := c.run(ctx, mutation("savePost", remote.Saves, remote.OpCreate,
		remote.Document{"user": c.session.UserID, "post": postID}, inv...))
	if err != nil {
		return remote.Save{}, err
	}
	return remote.DecodeSave(d)
}

func (c *Client) DeleteSave(ctx context.Context, saveID string) error {
	if err := required("deleteSave", remote.Saves, "save id", saveID); err != nil {
		return err
	}
	_, err := c.run(ctx, mutation("deleteSave", remote.Saves, remote.OpDelete,
		remote.Document{remote.FieldID: saveID}, postTouched()...))
	return err
}

// ==============================
// Bookings
// ==============================

func (c *Client) CreateBooking(ctx context.Context, b NewBooking) (remote.Booking, error) {
	if err := c.requireSession("createBooking"); err != nil {
		return remote.Booking{}, err
	}
	if b.UserLimit < 0 {
		return remote.Booking{}, feedsync.ValidationError("createBooking", remote.Bookings, errors.New("negative user limit"))
	}
	d, err := c.run(ctx, mutation("createBooking", remote.Bookings, remote.OpCreate, remote.Document{
		"creator":     c.session.UserID,
		"dateAndTime": b.DateAndTime.UTC().Format(time.RFC3339),
		"userLimit":   b.UserLimit,
		"attendees":   nonNil(b.Attendees),
	}, feedsync.ResourcePattern(ResRecentBookings)))
	if err != nil {
		return remote.Booking{}, err
	}
	return remote.DecodeBooking(d)
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	if err := required("deleteBooking", remote.Bookings, "booking id", id); err != nil {
		return err
	}
	_, err := c.run(ctx, mutation("deleteBooking", remote.Bookings, remote.OpDelete,
		remote.Document{remote.FieldID: id}, feedsync.ResourcePattern(ResRecentBookings)))
	return err
}

// AttendBooking adds the session user to the booking's attendees. The
// booking is read first: an existing attendee gets a StaleWriteError and a
// full booking a ValidationError, and neither is written.
func (c *Client) AttendBooking(ctx context.Context, bookingID string) (remote.Booking, error) {
	return c.setAttending(ctx, "attendBooking", bookingID, true)
}

// LeaveBooking removes the session user from the booking's attendees. A user
// who is not attending gets a StaleWriteError.
func (c *Client) LeaveBooking(ctx context.Context, bookingID string) (remote.Booking, error) {
	return c.setAttending(ctx, "leaveBooking", bookingID, false)
}

func (c *Client) setAttending(ctx context.Context, op, bookingID string, attend bool) (remote.Booking, error) {
	if err := c.requireSession(op); err != nil {
		return remote.Booking{}, err
	}
	if err := required(op, remote.Bookings, "booking id", bookingID); err != nil {
		return remote.Booking{}, err
	}
	name := c.session.Username
	mop := "mutate:" + op
	d, err := c.run(ctx, feedsync.Mutation{
		Op:          op,
		Resource:    remote.Bookings,
		Invalidates: []feedsync.Pattern{feedsync.ResourcePattern(ResUserBookings)},
		Do: func(ctx context.Context) (any, error) {
			cur, err := c.remote.GetByID(ctx, remote.Bookings, bookingID)
			if err != nil {
				return nil, err
			}
			b, err := remote.DecodeBooking(cur)
			if err != nil {
				return nil, err
			}
			var attendees []string
			switch {
			case attend && b.Attending(name):
				return nil, feedsync.StaleWriteError(mop, remote.Bookings, bookingID, errors.New("already attending"))
			case attend && b.Full():
				return nil, feedsync.ValidationError(mop, remote.Bookings, errors.New("booking is full"))
			case attend:
				attendees = append(slices.Clone(b.Attendees), name)
			case !b.Attending(name):
				return nil, feedsync.StaleWriteError(mop, remote.Bookings, bookingID, errors.New("not attending"))
			default:
				attendees = slices.DeleteFunc(slices.Clone(b.Attendees), func(a string) bool { return a == name })
			}
			return c.remote.Mutate(ctx, remote.Bookings, remote.OpUpdate,
				remote.Document{remote.FieldID: bookingID, "attendees": nonNil(attendees)})
		},
	})
	if err != nil {
		return remote.Booking{}, err
	}
	return remote.DecodeBooking(d)
}

// ==============================
// Users
// ==============================

func userTouched(id string) []feedsync.Pattern {
	return []feedsync.Pattern{
		feedsync.ResourcePattern(ResCurrentUser),
		feedsync.KeyPattern(UserKey(id)),
	}
}

func (c *Client) UpdateUser(ctx context.Context, u UserUpdate) (remote.User, error) {
	if err := required("updateUser", remote.Users, "user id", u.ID); err != nil {
		return remote.User{}, err
	}
	doc := remote.Document{remote.FieldID: u.ID}
	for k, v := range map[string]string{"name": u.Name, "bio": u.Bio, "imageURL": u.ImageURL, "imageId": u.ImageID} {
		if v != "" {
			doc[k] = v
		}
	}
	d, err := c.run(ctx, mutation("updateUser", remote.Users, remote.OpUpdate, doc, userTouched(u.ID)...))
	if err != nil {
		return remote.User{}, err
	}
	return remote.DecodeUser(d)
}

// AddPoints adds n (possibly negative) to the user's points.
func (c *Client) AddPoints(ctx context.Context, userID string, n int) (remote.User, error) {
	return c.adjust(ctx, "updateUserPoints", userID, func(u *remote.User) { u.Points += n })
}

// AddStars adds n (possibly negative) to the user's stars.
func (c *Client) AddStars(ctx context.Context, userID string, n int) (remote.User, error) {
	return c.adjust(ctx, "updateUserStars", userID, func(u *remote.User) { u.Stars += n })
}

// Redeem sets points and stars after a reward was redeemed.
func (c *Client) Redeem(ctx context.Context, userID string, points, stars int) (remote.User, error) {
	if points < 0 || stars < 0 {
		return remote.User{}, feedsync.ValidationError("redeem", remote.Users, errors.New("negative balance"))
	}
	return c.adjust(ctx, "redeem", userID, func(u *remote.User) { u.Points, u.Stars = points, stars })
}

// adjust reads the user, applies fn and writes points and stars back.
func (c *Client) adjust(ctx context.Context, op, userID string, fn func(*remote.User)) (remote.User, error) {
	if err := required(op, remote.Users, "user id", userID); err != nil {
		return remote.User{}, err
	}
	d, err := c.run(ctx, feedsync.Mutation{
		Op:          op,
		Resource:    remote.Users,
		Invalidates: userTouched(userID),
		Do: func(ctx context.Context) (any, error) {
			u, err := c.getUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			fn(&u)
			if u.Points < 0 || u.Stars < 0 {
				return nil, feedsync.ValidationError("mutate:"+op, remote.Users, errors.New("balance would go negative"))
			}
			return c.remote.Mutate(ctx, remote.Users, remote.OpUpdate, remote.Document{
				remote.FieldID: userID,
				"points":       u.Points,
				"stars":        u.Stars,
			})
		},
	})
	if err != nil {
		return remote.User{}, err
	}
	return remote.DecodeUser(d)
}

// nonNil keeps empty lists as [] on the wire.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
