package models

import "time"

// User is the owner of a folder tree. Users are created by registration and
// referenced by nodes and versions.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
