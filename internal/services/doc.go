// Package services integrates ZyloFM with external HTTP APIs.
//
// # Media Storage
//
// Uploaded audio and images go through the [MediaStorage] interface:
//   - [CloudinaryStorage] : signed multipart uploads and signed destroy calls against the Cloudinary
//     upload API. Audio is stored under the "video" resource type, which Cloudinary uses for sound.
//   - [LocalStorage] : writes below a directory served by the API, for development and tests.
//
// [NewMediaStorage] selects the backend from the [storage] config section.
//
// # Identity Provider
//
// [GoogleProvider] runs the authorization code flow with [oauth2.Config] and reads the signed-in
// user's OpenID Connect profile. Only verified emails are accepted.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrMissingConfig] : credentials absent
//   - [shared.ErrServiceUnavailable] : network failure or upstream 5xx
//   - [shared.ErrAPIRequest] : upstream rejected the request
//   - [shared.ErrUnauthorized] : OAuth code exchange failed
package services
