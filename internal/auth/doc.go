// Package auth owns the client session.
//
// [Store] holds the current user and access token in memory and persists only the refresh
// token through a [TokenStore]. Every mutation goes through its named methods: Login, Refreshed,
// Expire and Logout. Logging in invalidates the cached "auth" query and logging out clears the
// whole query cache so no resource data survives into the next session.
//
// [Refresher] exchanges the stored refresh token for a new token pair at boot and then on a
// fixed interval. Its states are:
//
//	Idle            no refresh token is stored, nothing was requested
//	Refreshing      a refresh request is in flight
//	Authenticated   the last refresh succeeded
//	Unauthenticated the last refresh failed and the session was cleared
//
// A failed refresh is not retried until the next tick.
package auth
