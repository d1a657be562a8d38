// Package config loads runtime configuration for the FileVault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config / -c.
//  3. Command-line flags given explicitly, which override earlier values.
//
// Supported flags
//
//	-a, --addr string        address:port of the backend gRPC endpoint
//	-f, --session string     path of the local session database
//	-r, --timeout duration   deadline for unary requests
//	-c, --config string      JSON configuration file
//
// # JSON schema
//
// Durations accept strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_db": "filevault.db",
//	  "request_timeout": "30s"
//	}
package config
