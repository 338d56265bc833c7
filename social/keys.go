package social

import "github.com/unkn0wn-root/feedsync"

// Cache resources. Mutations invalidate by these names.
const (
	ResPosts          = "posts"
	ResInfinitePosts  = "infinitePosts"
	ResRecentPosts    = "recentPosts"
	ResPostByID       = "postByID"
	ResUserPosts      = "userPosts"
	ResCurrentUser    = "currentUser"
	ResUserByID       = "userByID"
	ResBookings       = "bookings"
	ResRecentBookings = "recentBookings"
	ResUserBookings   = "userBookings"
	ResSearchPosts    = "searchPosts"
)

const (
	RecentLimit  = 20
	ExplorePage  = 15
	searchPrefix = "search"
)

func RecentPostsKey() feedsync.Key           { return feedsync.NewKey(ResRecentPosts) }
func RecentBookingsKey() feedsync.Key        { return feedsync.NewKey(ResRecentBookings) }
func PostKey(id string) feedsync.Key         { return feedsync.NewKey(ResPostByID, id) }
func UserKey(id string) feedsync.Key         { return feedsync.NewKey(ResUserByID, id) }
func UserPostsKey(id string) feedsync.Key    { return feedsync.NewKey(ResUserPosts, id) }
func UserBookingsKey(id string) feedsync.Key { return feedsync.NewKey(ResUserBookings, id) }
func CurrentUserKey() feedsync.Key           { return feedsync.NewKey(ResCurrentUser) }
func InfinitePostsKey() feedsync.Key         { return feedsync.NewKey(ResInfinitePosts) }
func SearchPostsKey() feedsync.Key           { return feedsync.NewKey(ResSearchPosts, searchPrefix) }

// postTouched is what a like, save or unsave makes stale.
func postTouched() []feedsync.Pattern {
	return []feedsync.Pattern{
		feedsync.ResourcePattern(ResRecentPosts),
		feedsync.ResourcePattern(ResPosts),
		feedsync.ResourcePattern(ResCurrentUser),
	}
}
