// Package tasks runs long library operations with real-time progress reporting.
//
// # Library Export
//
// [Exporter.Export] writes every section of the library the signed-in user can see
// to a directory, one file per section:
//
//   - movies, latest and now-playing listings
//   - local watch history and the user's profile
//   - users and server settings, for administrators
//   - optionally one file per movie under movies/
//
// Sections load through the same route tree as the terminal and web frontends,
// so guards, the query cache and error normalization all apply. A worker pool
// renders and writes sections concurrently while a rate limiter paces the loads.
// Failed sections do not stop the export; they are listed in export_manifest.json.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends never block:
// updates are dropped when the channel is full.
package tasks
