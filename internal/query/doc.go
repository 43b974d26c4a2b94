// Package query is a keyed cache for server data.
//
// Each [Key] identifies one resource, e.g. Key{"movie", "42"}. [Fetch] returns fresh cached
// data or runs the fetch function, storing the result with a [Status] of pending, error or
// success. Concurrent fetches of the same key share one call through singleflight.
//
// Failed fetches are retried with exponential backoff when [Options.ShouldRetry] allows it.
// A retry count of 0 ([WithRetry]) disables retries for a single call.
//
// [Client.Invalidate] marks a key prefix stale so the next fetch goes to the server, and
// [Client.Clear] drops everything, discarding results of fetches that were in flight.
package query
