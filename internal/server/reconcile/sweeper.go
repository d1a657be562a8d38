// Package reconcile removes uploads whose metadata was committed but whose
// content never reached the blob store.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

const defaultBatchSize = 128

// Options configures a Sweeper.
type Options struct {
	DB          *sql.DB
	Repos       repomanager.RepositoryManager
	Blobs       blobstore.Store
	Logger      logging.Logger
	GracePeriod time.Duration
	BatchSize   int
}

// Sweeper deletes pending versions older than the grace period, together
// with their blob and, when it was the file's only version, the file node.
type Sweeper struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	blobs blobstore.Store
	log   logging.Logger
	grace time.Duration
	batch int
	now   func() time.Time
}

func NewSweeper(opts Options) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Sweeper{
		db:    opts.DB,
		repos: opts.Repos,
		blobs: opts.Blobs,
		log:   logger.With("module", "reconcile"),
		grace: opts.GracePeriod,
		batch: batch,
		now:   time.Now,
	}
}

// Sweep performs one pass and returns the number of versions removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.db == nil || s.repos == nil || s.blobs == nil {
		return 0, fmt.Errorf("reconcile sweeper missing dependencies")
	}
	cutoff := s.now().Add(-s.grace)

	var total int
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		stale, err := s.repos.Versions(s.db).ListStalePending(ctx, cutoff, s.batch)
		if err != nil {
			return total, err
		}
		if len(stale) == 0 {
			return total, nil
		}
		for _, v := range stale {
			removed, err := s.remove(ctx, v)
			if err != nil {
				return total, err
			}
			if removed {
				total++
			}
		}
		if len(stale) < s.batch {
			return total, nil
		}
	}
}

// Start launches a background sweep loop until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			n, err := s.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error(ctx, "sweep failed", "error", err)
			} else if n > 0 {
				s.log.Info(ctx, "removed stale pending versions", "count", n)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

// remove drops the metadata first so an upload still finishing fails its
// completion step instead of ending up pointing at a deleted blob.
func (s *Sweeper) remove(ctx context.Context, v *models.FileVersion) (bool, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Versions(tx).DeletePending(ctx, v.ID); err != nil {
			return err
		}
		_, err := s.repos.Nodes(tx).DeleteFileWithoutVersions(ctx, v.NodeID)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		// Completed or already removed meanwhile.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove pending version %s: %w", v.ID, err)
	}

	// The same content may have been uploaded again under the same key.
	holder, err := s.repos.Versions(s.db).FindByHash(ctx, v.OwnerID, v.Hash)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return true, fmt.Errorf("check blob %s: %w", v.StorageKey, err)
	}
	if holder != nil && holder.StorageKey == v.StorageKey {
		return true, nil
	}
	if err := s.blobs.Delete(ctx, v.StorageKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return true, fmt.Errorf("delete blob %s: %w", v.StorageKey, err)
	}
	s.log.Debug(ctx, "pending version removed", "version_id", v.ID, "file_id", v.NodeID)
	return true, nil
}
