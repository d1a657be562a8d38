// Package services contains the server-side business logic: the upload and
// retrieval pipelines over the node tree and version ledger, folder listing,
// and owner registration.
//
// Every exported operation returns either a result or an *Error whose
// Outcome carries exactly one Kind.
package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/juju/errors"
)

// FileService runs uploads, retrievals and listings for owners.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	logger      logging.Logger
	spoolDir    string
	maxSize     int64
	grace       time.Duration
	now         func() time.Time
}

// NewFileService wires a FileService. cfg supplies the spool directory, the
// upload size limit and the age after which a pending version counts as
// abandoned.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger, cfg *config.Config) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		logger:      logger.With("module", "files"),
		spoolDir:    cfg.SpoolDir,
		maxSize:     cfg.MaxUploadSize,
		grace:       cfg.PendingGracePeriod,
		now:         time.Now,
	}
}

// staleCutoff is the creation time before which a pending version is
// abandoned. ok is false when no grace period is configured.
func (s *FileService) staleCutoff() (cutoff time.Time, ok bool) {
	if s.grace <= 0 {
		return time.Time{}, false
	}
	return s.now().Add(-s.grace), true
}

// isStale reports whether v is a pending version past the grace period.
func (s *FileService) isStale(v *models.FileVersion) bool {
	cutoff, ok := s.staleCutoff()
	return ok && v.Status == models.VersionPending && v.CreatedAt.Before(cutoff)
}

func (s *FileService) tree() *NodeTree {
	return NewNodeTree(s.repomanager.Nodes(s.db))
}

func (s *FileService) ledger() *VersionLedger {
	return NewVersionLedger(s.repomanager.Versions(s.db))
}

// normalizeEmail is the canonical form emails are stored and looked up in.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolveOwner loads the owner by email. An unknown email is Unauthorized:
// the caller presented an identity the store does not know.
func (s *FileService) resolveOwner(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.Unauthorizedf("missing owner")
	}
	owner, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, errors.Unauthorizedf("unknown owner %q", email)
	}
	if err != nil {
		return nil, connectionError(err, "resolve owner")
	}
	return owner, nil
}

// recoverAsConnection turns a panic inside an operation into a connection
// error so callers always receive a classified failure.
func (s *FileService) recoverAsConnection(ctx context.Context, op string, err *error) {
	if p := recover(); p != nil {
		s.logger.Error(ctx, "panic in "+op, "panic", p)
		*err = fail(connectionError(errors.Errorf("%v", p), op))
	}
}
