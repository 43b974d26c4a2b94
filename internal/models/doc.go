// Package models defines the entities exchanged with the Igloo backend.
//
// The package contains two categories of types:
//
// 1. Resources returned by the server, replaced wholesale on every fetch:
//   - [User] : account snapshot returned by the auth and users endpoints
//   - [Movie] : library entry with playback progress
//   - [Settings] : server configuration editable by admins
//
// 2. Inputs sent to the server, validated before any request is issued:
//   - [Credentials] : login form
//   - [UserInput] : user create/update form
//   - [Settings] : also doubles as the settings form payload
//
// Validation uses struct tags checked by [Validate], which returns a [ValidationError] wrapping [shared.ErrInvalidInput].
package models
