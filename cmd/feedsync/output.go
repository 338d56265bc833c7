package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unkn0wn-root/feedsync/remote"
)

// Colors follow a dark terminal theme.
const (
	colorAccent  = "#7AA2F7"
	colorMuted   = "#737AA2"
	colorLike    = "#F7768E"
	colorSuccess = "#9ECE6A"
	colorWarning = "#E0AF68"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	likeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLike))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorMuted)).
			Padding(0, 1)
)

func heart(liked bool) string {
	if liked {
		return likeStyle.Render("♥")
	}
	return mutedStyle.Render("♡")
}

// postLine renders one post as a single line, marking the viewer's like.
func postLine(p remote.Post, viewer string) string {
	var b strings.Builder
	b.WriteString(heart(p.LikedBy(viewer)))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%-4s", p.ID)))
	b.WriteString(" ")
	b.WriteString(p.Content)
	if p.Location != "" {
		b.WriteString(mutedStyle.Render(" · " + p.Location))
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" (%d)", len(p.Likes))))
	return b.String()
}

func printPosts(w io.Writer, title string, posts []remote.Post, viewer string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if len(posts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  nothing here yet"))
		return
	}
	for _, p := range posts {
		fmt.Fprintln(w, "  "+postLine(p, viewer))
	}
}

func printPost(w io.Writer, p remote.Post, viewer string) {
	lines := []string{
		titleStyle.Render(p.ID) + mutedStyle.Render(" by "+p.Creator),
		p.Content,
	}
	if len(p.Tags) > 0 {
		lines = append(lines, mutedStyle.Render("#"+strings.Join(p.Tags, " #")))
	}
	lines = append(lines, fmt.Sprintf("%s %d likes", heart(p.LikedBy(viewer)), len(p.Likes)))
	fmt.Fprintln(w, cardStyle.Render(strings.Join(lines, "\n")))
}

func printUser(w io.Writer, u remote.User) {
	lines := []string{
		titleStyle.Render(u.Name) + mutedStyle.Render(" @"+u.Username),
	}
	if u.Bio != "" {
		lines = append(lines, u.Bio)
	}
	lines = append(lines, fmt.Sprintf("%s points  %s stars",
		successStyle.Render(fmt.Sprint(u.Points)), warnStyle.Render(fmt.Sprint(u.Stars))))
	fmt.Fprintln(w, cardStyle.Render(strings.Join(lines, "\n")))
}

func bookingLine(b remote.Booking, viewer string) string {
	limit := "open"
	if b.UserLimit > 0 {
		limit = fmt.Sprintf("%d/%d", len(b.Attendees), b.UserLimit)
	}
	status := mutedStyle.Render(limit)
	switch {
	case b.Attending(viewer):
		status = successStyle.Render("attending " + limit)
	case b.Full():
		status = warnStyle.Render("full " + limit)
	}
	host := b.CreatorID
	if b.Creator != nil {
		host = b.Creator.Name
	}
	return fmt.Sprintf("%s %s %s %s",
		mutedStyle.Render(fmt.Sprintf("%-4s", b.ID)),
		b.DateAndTime.Format("Mon Jan 2 15:04"),
		mutedStyle.Render("hosted by "+host),
		status)
}

func printBookings(w io.Writer, title string, bookings []remote.Booking, viewer string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if len(bookings) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no bookings"))
		return
	}
	for _, b := range bookings {
		fmt.Fprintln(w, "  "+bookingLine(b, viewer))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
