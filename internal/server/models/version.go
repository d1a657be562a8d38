package models

import "time"

// Upload status values of a FileVersion.
const (
	// VersionPending marks a version whose metadata is committed but whose
	// blob write is not yet confirmed. Readers never see pending versions.
	VersionPending = "pending"
	// VersionCompleted marks a version whose bytes are in the blob store.
	VersionCompleted = "completed"
)

// FileVersion is one immutable content revision of a file node.
type FileVersion struct {
	ID      string
	NodeID  string
	OwnerID string
	// Version starts at 1 and grows by one per upload of the node.
	Version int64
	// Hash is the hex content fingerprint, used for dedup only.
	Hash string
	// StorageKey is the blob store key holding the bytes.
	StorageKey string
	Size       int64
	Status     string
	CreatedAt  time.Time
}
