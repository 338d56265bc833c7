// Package feedsync keeps a local, deduplicated view of remote collections and
// refreshes it by invalidation after writes.
//
// Components:
//   - Store: keyed entries with status, error and a subscriber count. Concurrent
//     fetches of one key share a single remote call.
//   - Pager: an infinite list over a paged source with hasMore tracking.
//   - Search: a debounced term that switches a view between feed and search.
//   - Feed: Pager plus Search, exposing one combined view.
//   - Executor: runs a Mutation and invalidates the key patterns it names,
//     only on success.
//   - Toggle: an optimistic boolean with serialized writes that reverts on
//     failure.
//
// Keys are a resource plus ordered parameters. A Pattern selects keys for
// invalidation by resource and parameter prefix:
//
//	NewKey("posts", "recent")        // posts:recent
//	PrefixPattern("posts", "recent") // posts:recent:*
//	ResourcePattern("posts")         // posts:*
//
// Refetch pattern:
//
//	sub := st.Subscribe(k, onChange)     // k stays cached and refetches on invalidation
//	v, err := st.Fetch(ctx, k, loader)   // concurrent callers share one load
//	_, err = ex.Execute(ctx, createPost) // invalidates posts:recent:* on success
package feedsync
