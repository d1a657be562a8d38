package config

import "time"

// Config holds runtime settings for the FileVault CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - SessionDB: SQLite file keeping the owner email and access token.
//   - RequestTimeout: deadline for unary calls; streams are not limited.
type Config struct {
	ServerEndpointAddr string
	SessionDB          string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionDB = "filevault.db"
	c.RequestTimeout = 30 * time.Second
}
