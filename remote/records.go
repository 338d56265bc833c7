package remote

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/codec"
)

// Post is a validated posts document.
type Post struct {
	ID        string    `json:"$id"`
	Creator   string    `json:"creator"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageURL,omitempty"`
	ImageID   string    `json:"imageId,omitempty"`
	Location  string    `json:"location,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Likes     []string  `json:"likes,omitempty"`
	CreatedAt time.Time `json:"$createdAt"`
	UpdatedAt time.Time `json:"$updatedAt"`
}

// LikedBy reports whether userID is in the post's likes.
func (p Post) LikedBy(userID string) bool { return slices.Contains(p.Likes, userID) }

func (p *Post) validate() error {
	switch {
	case p.ID == "":
		return errors.New("missing $id")
	case p.Creator == "":
		return errors.New("missing creator")
	}
	return nil
}

// User is a validated users document.
type User struct {
	ID       string `json:"$id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	ImageURL string `json:"imageURL,omitempty"`
	ImageID  string `json:"imageId,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Points   int    `json:"points"`
	Stars    int    `json:"stars"`
	RoleType string `json:"roleType,omitempty"`
}

func (u *User) validate() error {
	switch {
	case u.ID == "":
		return errors.New("missing $id")
	case u.Username == "":
		return errors.New("missing username")
	case u.Points < 0 || u.Stars < 0:
		return errors.New("negative points or stars")
	}
	return nil
}

// Booking is a validated bookings document. Creator is filled in by
// enrichment and is nil when the creator could not be loaded.
type Booking struct {
	ID          string    `json:"$id"`
	CreatorID   string    `json:"creator"`
	DateAndTime time.Time `json:"dateAndTime"`
	UserLimit   int       `json:"userLimit"`
	Attendees   []string  `json:"attendees"`
	Creator     *User     `json:"-"`
}

// Attending reports whether username is already an attendee.
func (b Booking) Attending(username string) bool { return slices.Contains(b.Attendees, username) }

// Full reports whether the booking reached its user limit. A zero limit
// means unlimited.
func (b Booking) Full() bool { return b.UserLimit > 0 && len(b.Attendees) >= b.UserLimit }

func (b *Booking) validate() error {
	switch {
	case b.ID == "":
		return errors.New("missing $id")
	case b.CreatorID == "":
		return errors.New("missing creator")
	case b.UserLimit < 0:
		return errors.New("negative userLimit")
	}
	return nil
}

// Save links a user to a post they saved.
type Save struct {
	ID     string `json:"$id"`
	UserID string `json:"user"`
	PostID string `json:"post"`
}

func (s *Save) validate() error {
	if s.ID == "" || s.UserID == "" || s.PostID == "" {
		return errors.New("save needs $id, user and post")
	}
	return nil
}

type record[R any] interface {
	*R
	validate() error
}

var docJSON = codec.JSON[Document]{}

// decode validates d into R. Any shape mismatch is a validation error.
func decode[R any, P record[R]](resource string, d Document) (R, error) {
	var zero R
	if d == nil {
		return zero, feedsync.ValidationError("decode", resource, errors.New("nil document"))
	}
	b, err := docJSON.Encode(d)
	if err != nil {
		return zero, feedsync.ValidationError("decode", resource, err)
	}
	r, err := codec.JSON[R]{}.Decode(b)
	if err != nil {
		return zero, feedsync.ValidationError("decode", resource, err)
	}
	if err := P(&r).validate(); err != nil {
		return zero, &feedsync.RemoteError{
			Kind:     feedsync.KindValidation,
			Op:       "decode",
			Resource: resource,
			ID:       d.ID(),
			Err:      err,
		}
	}
	return r, nil
}

func decodeAll[R any, P record[R]](resource string, docs []Document) ([]R, error) {
	out := make([]R, 0, len(docs))
	for i, d := range docs {
		r, err := decode[R, P](resource, d)
		if err != nil {
			return nil, fmt.Errorf("remote: %s[%d]: %w", resource, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func DecodePost(d Document) (Post, error)       { return decode[Post](Posts, d) }
func DecodeUser(d Document) (User, error)       { return decode[User](Users, d) }
func DecodeBooking(d Document) (Booking, error) { return decode[Booking](Bookings, d) }
func DecodeSave(d Document) (Save, error)       { return decode[Save](Saves, d) }

func DecodePosts(docs []Document) ([]Post, error)       { return decodeAll[Post](Posts, docs) }
func DecodeBookings(docs []Document) ([]Booking, error) { return decodeAll[Booking](Bookings, docs) }

// DecodePostPage validates every document of a page, keeping its cursor.
func DecodePostPage(pg feedsync.Page[Document]) (feedsync.Page[Post], error) {
	items, err := DecodePosts(pg.Items)
	if err != nil {
		return feedsync.Page[Post]{}, err
	}
	return feedsync.Page[Post]{Items: items, Next: pg.Next}, nil
}
