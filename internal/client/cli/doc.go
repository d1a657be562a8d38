// Package cli provides the FileVault command-line client.
//
// Every command is a cobra subcommand of the root returned by
// NewRootCommand. The session (owner email and access token) is kept in a
// local SQLite database so later invocations reuse it: `register` or
// `login` stores it, `logout` clears it.
package cli
