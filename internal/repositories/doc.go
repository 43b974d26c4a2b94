// Package repositories implements SQLite persistence for client-side state.
//
// Nothing the server owns is stored here. The client keeps only:
//   - [StateRepository] : a key/value table for small values that outlive a run
//   - [RefreshTokenStore] : the refresh token under a fixed key, adapted onto [StateRepository]
//   - [HistoryRepository] : movies started from this client
//
// Access tokens are never written to the database.
package repositories
