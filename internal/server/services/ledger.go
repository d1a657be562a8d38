package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/versions"
	"github.com/juju/errors"
)

// VersionLedger numbers and selects the versions of file nodes.
type VersionLedger struct {
	versions versions.Repository
}

func NewVersionLedger(repo versions.Repository) *VersionLedger {
	return &VersionLedger{versions: repo}
}

// NextVersionNumber returns the number the next upload of node gets: 1 for a
// node without completed versions, highest completed+1 otherwise. A pending
// version already holding that number makes the insert conflict.
func (l *VersionLedger) NextVersionNumber(ctx context.Context, node *models.Node) (int64, error) {
	if node.ID == "" {
		return 1, nil
	}
	n, err := l.versions.HighestNumber(ctx, node.ID)
	if err != nil {
		return 0, connectionError(err, "read highest version")
	}
	return n + 1, nil
}

// Latest returns the node's highest completed version, or nil.
func (l *VersionLedger) Latest(ctx context.Context, node *models.Node) (*models.FileVersion, error) {
	return l.optional(l.versions.Latest(ctx, node.ID))
}

// ByNumber returns exactly version n of node, or nil. There is no fallback
// to a neighbouring version.
func (l *VersionLedger) ByNumber(ctx context.Context, node *models.Node, n int64) (*models.FileVersion, error) {
	if n < 1 {
		return nil, nil
	}
	return l.optional(l.versions.ByNumber(ctx, node.ID, n))
}

// DuplicateOf returns a version of any of the owner's files with the given
// content hash, or nil.
func (l *VersionLedger) DuplicateOf(ctx context.Context, owner *models.User, hash string) (*models.FileVersion, error) {
	return l.optional(l.versions.FindByHash(ctx, owner.ID, hash))
}

// ReclaimStale deletes the owner's pending versions created before
// olderThan and returns them, so their numbers and hashes are free again.
func (l *VersionLedger) ReclaimStale(ctx context.Context, owner *models.User, olderThan time.Time) ([]*models.FileVersion, error) {
	vs, err := l.versions.DeleteStalePending(ctx, owner.ID, olderThan)
	if err != nil {
		return nil, connectionError(err, "reclaim stale versions")
	}
	return vs, nil
}

// History returns the node's completed versions in ascending order.
func (l *VersionLedger) History(ctx context.Context, node *models.Node) ([]*models.FileVersion, error) {
	vs, err := l.versions.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, connectionError(err, "list versions")
	}
	return vs, nil
}

func (l *VersionLedger) optional(v *models.FileVersion, err error) (*models.FileVersion, error) {
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, connectionError(err, "read version")
	}
	return v, nil
}
