// Package router matches locations against a route tree and runs route hooks.
//
// A navigation runs, in order:
//  1. matching, which picks the chain of routes from the root to the leaf and extracts ":param" segments
//  2. search validation, where each route in the chain may parse and sanitize query parameters
//  3. BeforeLoad hooks, root to leaf; any error aborts the navigation and a [*Redirect] names where to go
//  4. the leaf's Loader, whose result becomes [Match.Data]
//
// The guarded subtree never loads when a BeforeLoad hook fails. [RequireAuth] is the
// authentication guard and [RequireAdmin] narrows it to administrators.
package router
