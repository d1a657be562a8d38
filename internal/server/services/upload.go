package services

import (
	"context"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/fingerprint"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/juju/errors"
)

// UploadRequest is one file upload. Folder names the target folder; empty
// means the owner's root.
type UploadRequest struct {
	Content    io.Reader
	Filename   string
	Size       int64
	Folder     string
	OwnerEmail string
}

// UploadResult describes the stored version.
type UploadResult struct {
	Node    *models.Node
	Version *models.FileVersion
	// NewFile is true when the upload created the node.
	NewFile bool
}

// Upload stores a new content revision.
//
// Metadata is committed first with the version pending, then the bytes are
// written, then the version is marked completed. A failed blob write
// removes the pending rows again; a crash in between leaves a pending row
// that readers never see and the reconciler removes.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) (res *UploadResult, err error) {
	defer s.recoverAsConnection(ctx, "upload", &err)

	res, err = s.upload(ctx, req)
	if err != nil {
		if KindOf(err) == KindConnection {
			s.logger.Error(ctx, "upload failed", "filename", req.Filename, "error", err)
		}
		return nil, fail(err)
	}
	return res, nil
}

func (s *FileService) upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Content == nil {
		return nil, errors.BadRequestf("no content")
	}
	filename := cleanFilename(req.Filename)
	if filename == "" {
		return nil, errors.BadRequestf("filename is required")
	}
	if s.maxSize > 0 && req.Size > s.maxSize {
		return nil, errors.BadRequestf("file exceeds %d bytes", s.maxSize)
	}

	owner, err := s.resolveOwner(ctx, req.OwnerEmail)
	if err != nil {
		return nil, err
	}
	tree := s.tree()
	folder, err := tree.ResolveTargetFolder(ctx, owner, strings.TrimSpace(req.Folder))
	if err != nil {
		return nil, err
	}
	if err := tree.ValidateWritable(folder, owner).Err(); err != nil {
		return nil, err
	}

	spooled, err := fingerprint.Spool(s.spoolDir, req.Content, s.maxSize)
	if errors.Is(err, fingerprint.ErrTooLarge) {
		return nil, errors.BadRequestf("file exceeds %d bytes", s.maxSize)
	}
	if err != nil {
		return nil, connectionError(err, "read upload")
	}
	defer spooled.Close()

	if spooled.Size == 0 {
		return nil, errors.BadRequestf("empty upload")
	}
	hash := spooled.Hash.String()

	dup, err := s.ledger().DuplicateOf(ctx, owner, hash)
	if err != nil {
		return nil, err
	}
	// An abandoned pending row does not make the content a duplicate; it is
	// reclaimed below.
	if dup != nil && !s.isStale(dup) {
		return nil, errors.BadRequestf("duplicate content")
	}

	key := fingerprint.StorageKey(owner.Email, spooled.Hash, filename)

	res, reclaimed, err := s.persistPending(ctx, owner, folder, filename, &models.FileVersion{
		OwnerID:    owner.ID,
		Hash:       hash,
		StorageKey: key,
		Size:       spooled.Size,
		Status:     models.VersionPending,
	})
	if err != nil {
		return nil, err
	}

	s.dropBlobs(ctx, reclaimed)

	if err := spooled.Rewind(); err != nil {
		s.compensate(ctx, res)
		return nil, connectionError(err, "rewind upload")
	}
	if err := s.blobs.Put(ctx, key, spooled, spooled.Size); err != nil {
		s.compensate(ctx, res)
		return nil, connectionError(err, "store content")
	}

	// The bytes are stored; finish even if the caller went away.
	if err := s.repomanager.Versions(s.db).MarkCompleted(context.WithoutCancel(ctx), res.Version.ID); err != nil {
		s.compensate(ctx, res)
		_ = s.blobs.Delete(context.WithoutCancel(ctx), key)
		return nil, connectionError(err, "complete version")
	}
	res.Version.Status = models.VersionCompleted

	s.logger.Info(ctx, "version stored",
		"file_id", res.Node.ID, "version", res.Version.Version, "size", res.Version.Size, "new_file", res.NewFile)
	return res, nil
}

// persistPending writes the node (when new) and the pending version in one
// transaction. The owner's abandoned pending versions are removed first, along
// with file nodes they leave empty, and returned so their blobs can go too.
func (s *FileService) persistPending(ctx context.Context, owner *models.User, folder *models.Node, filename string, version *models.FileVersion) (*UploadResult, []*models.FileVersion, error) {
	res := &UploadResult{}
	var reclaimed []*models.FileVersion

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nodesRepo := s.repomanager.Nodes(tx)
		tree := NewNodeTree(nodesRepo)
		ledger := NewVersionLedger(s.repomanager.Versions(tx))

		if cutoff, ok := s.staleCutoff(); ok {
			vs, err := ledger.ReclaimStale(ctx, owner, cutoff)
			if err != nil {
				return err
			}
			emptied := map[string]bool{}
			for _, v := range vs {
				if emptied[v.NodeID] {
					continue
				}
				emptied[v.NodeID] = true
				if _, err := nodesRepo.DeleteFileWithoutVersions(ctx, v.NodeID); err != nil {
					return err
				}
			}
			reclaimed = vs
		}

		node, err := tree.FindExistingFileByName(ctx, owner, folder, filename)
		if err != nil {
			return err
		}
		if node == nil {
			node, err = nodesRepo.Create(ctx, &models.Node{
				Name:        filename,
				OwnerID:     owner.ID,
				ParentID:    &folder.ID,
				ContentType: contentTypeOf(filename),
			})
			if err != nil {
				return err
			}
			res.NewFile = true
		}

		number, err := ledger.NextVersionNumber(ctx, node)
		if err != nil {
			return err
		}
		version.NodeID = node.ID
		version.Version = number

		v, err := s.repomanager.Versions(tx).Create(ctx, version)
		if err != nil {
			return err
		}

		res.Node = node
		res.Version = v
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, nil, errors.AlreadyExistsf("concurrent upload of %q", filename)
		}
		if k := KindOf(err); k != KindConnection {
			return nil, nil, err
		}
		return nil, nil, connectionError(err, "persist metadata")
	}
	if len(reclaimed) > 0 {
		s.logger.Info(ctx, "abandoned pending versions reclaimed", "owner_id", owner.ID, "count", len(reclaimed))
	}
	return res, reclaimed, nil
}

// dropBlobs deletes the blobs of reclaimed versions. It runs before the new
// blob is written, so a reclaimed key equal to the new one is safe to drop.
func (s *FileService) dropBlobs(ctx context.Context, vs []*models.FileVersion) {
	for _, v := range vs {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), v.StorageKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Warn(ctx, "reclaimed blob not deleted", "storage_key", v.StorageKey, "error", err)
		}
	}
}

// compensate removes the pending rows of an upload whose bytes never made it.
// Failures are logged; the reconciler removes whatever is left.
func (s *FileService) compensate(ctx context.Context, res *UploadResult) {
	ctx = context.WithoutCancel(ctx)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Versions(tx).DeletePending(ctx, res.Version.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if res.NewFile {
			if _, err := s.repomanager.Nodes(tx).DeleteFileWithoutVersions(ctx, res.Node.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "compensation failed, leaving pending version to reconciler",
			"version_id", res.Version.ID, "error", err)
	}
}

// cleanFilename strips any directory part a client sent along.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// contentTypeOf derives the content type from the extension, falling back to
// common.UnknownContentType.
func contentTypeOf(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return common.UnknownContentType
}
