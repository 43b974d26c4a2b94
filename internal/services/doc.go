// Package services implements clients for the Igloo REST API.
//
// # HTTP Client
//
// [APIService] is the single place requests are built. It encodes JSON bodies, attaches an
// X-Request-ID, sends the bearer token from an [oauth2.TokenSource] and keeps session cookies
// in a jar. An optional [rate.Limiter] throttles outgoing requests.
//
// # Error Normalization
//
// Every failure is an [*APIError] tagged with an [ErrorKind]:
//   - [KindUnreachable] : no response was received ([shared.ErrServiceUnavailable])
//   - [KindStatus] : status 400 or above, mapped to a shared sentinel by status code
//   - [KindDecode] : a successful body could not be decoded
//
// The user-facing message is the server's "error" field when present, otherwise the
// fallback for the status code from [StatusMessage]. [ErrorMessage] turns any error
// into display text and is what every frontend uses.
//
// # Resource Services
//
//   - [AuthService] : login, refresh, logout and who-am-i
//   - [MovieService] : library listings, details and the HLS stream URL
//   - [UserService] : admin user management
//   - [SettingsService] : server settings
//
// Inputs are validated with [models.Validate] before any request is issued.
package services
