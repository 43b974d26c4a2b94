// Package app wires the client together.
//
// [Provider] is the single root object every frontend receives. It owns the session store,
// the refresh loop, the query cache and the router, and exposes the operations the CLI, the
// terminal UI and the web frontend share: Boot, Login, Logout, Navigate and the mutations.
// Nothing outside the provider mutates the session or the cache directly.
//
// The route table lives in routes.go. Protected routes sit under a pathless layout guarded by
// [router.RequireAuth], which confirms the session through the cached "auth" query.
package app
