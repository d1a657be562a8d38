// Package models defines server-side data models persisted in the database.
package models

import "time"

// Node is a folder or a file in one owner's tree.
type Node struct {
	ID          string
	Name        string
	IsDirectory bool
	OwnerID     string
	// ParentID is nil only for the owner's root folder.
	ParentID *string
	// ContentType is empty for directories.
	ContentType string
	CreatedAt   time.Time
}

// IsRoot reports whether n is an owner's root folder.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}
