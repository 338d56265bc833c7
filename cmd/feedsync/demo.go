package main

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/remote/memremote"
)

var demoUsers = []remote.Document{
	{remote.FieldID: "u1", "username": "ann", "name": "Ann Lee", "bio": "bouldering and bread", "points": 120, "stars": 3},
	{remote.FieldID: "u2", "username": "bob", "name": "Bob Stone", "bio": "trail runner", "points": 40, "stars": 1},
	{remote.FieldID: "u3", "username": "cleo", "name": "Cleo Park", "points": 0, "stars": 0},
}

var demoCaptions = []string{
	"morning coffee on the balcony",
	"first snow on the ridge",
	"new climbing shoes, who dis",
	"sourdough attempt number four",
	"cat asleep on the keyboard again",
	"sunset from the pier",
	"farmers market haul",
	"rainy day reading list",
	"trail run before work",
	"homemade ramen night",
}

// seedDemo fills c with a small social graph for the mem remote mode.
func seedDemo(c *memremote.Client) error {
	if err := c.Seed(remote.Users, demoUsers...); err != nil {
		return err
	}

	ids := []string{"u1", "u2", "u3"}
	posts := make([]remote.Document, 0, 3*len(demoCaptions))
	for round := 0; round < 3; round++ {
		for i, caption := range demoCaptions {
			n := round*len(demoCaptions) + i
			creator := ids[n%len(ids)]
			var likes []string
			for j, id := range ids {
				if (n+j)%4 == 0 && id != creator {
					likes = append(likes, id)
				}
			}
			posts = append(posts, remote.Document{
				remote.FieldID: fmt.Sprintf("p%02d", n+1),
				"creator":      creator,
				"content":      caption,
				"location":     []string{"Lisbon", "Oslo", "Kyoto"}[round],
				"tags":         []string{"daily"},
				"likes":        likes,
			})
		}
	}
	if err := c.Seed(remote.Posts, posts...); err != nil {
		return err
	}

	start := time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC)
	bookings := []remote.Document{
		{remote.FieldID: "b1", "creator": "u1", "dateAndTime": start.Format(time.RFC3339), "userLimit": 4, "attendees": []string{"ann", "bob"}},
		{remote.FieldID: "b2", "creator": "u2", "dateAndTime": start.Add(48 * time.Hour).Format(time.RFC3339), "userLimit": 1, "attendees": []string{"cleo"}},
		{remote.FieldID: "b3", "creator": "u2", "dateAndTime": start.Add(7 * 24 * time.Hour).Format(time.RFC3339), "userLimit": 0, "attendees": []string{}},
	}
	return c.Seed(remote.Bookings, bookings...)
}
