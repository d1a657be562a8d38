// Package common contains shared constants and sentinel errors used across
// FileVault components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// UnknownContentType is recorded for files whose type cannot be derived
// from the file name.
const UnknownContentType = "unknown"
