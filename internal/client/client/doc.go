// Package client contains client-side building blocks for FileVault.
//
// # Overview
//
// The package provides:
//  1. A gRPC client (see GRPCClient) for the FileStorage API. It injects the
//     access token into every call, streams uploads and downloads in chunks
//     and maps gRPC status codes to sentinel errors.
//  2. Local session storage bootstrap (InitDatabase, RunMigrations): an
//     SQLite database migrated with embedded goose migrations that keeps the
//     owner email and access token between CLI invocations.
//
// # Error Handling
//
// Failures reported by the server are exposed as sentinel errors that
// callers can match with errors.Is: ErrUnavailable, ErrUnauthorized,
// ErrForbidden, ErrNotFound, ErrAlreadyExists and ErrInvalidArgument. The
// server message is kept in the error text.
package client
