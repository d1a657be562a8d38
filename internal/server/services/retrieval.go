package services

import (
	"context"
	"io"

	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// Retrieval is a version's bytes and metadata. Content starts at the first
// byte; the caller closes it.
type Retrieval struct {
	Content io.ReadCloser
	Node    *models.Node
	Version *models.FileVersion
}

// Get returns the latest completed version of a file, or exactly version
// *version when given. A version whose bytes cannot be fetched is a
// connection error, never NotFound.
func (s *FileService) Get(ctx context.Context, fileID, callerEmail string, version *int64) (r *Retrieval, err error) {
	defer s.recoverAsConnection(ctx, "get", &err)

	r, err = s.get(ctx, fileID, callerEmail, version)
	if err != nil {
		if KindOf(err) == KindConnection {
			s.logger.Error(ctx, "retrieval failed", "file_id", fileID, "error", err)
		}
		return nil, fail(err)
	}
	return r, nil
}

func (s *FileService) get(ctx context.Context, fileID, callerEmail string, version *int64) (*Retrieval, error) {
	caller, err := s.resolveOwner(ctx, callerEmail)
	if err != nil {
		return nil, err
	}
	node, err := s.ownedFile(ctx, caller, fileID)
	if err != nil {
		return nil, err
	}

	ledger := s.ledger()
	var v *models.FileVersion
	if version == nil {
		v, err = ledger.Latest(ctx, node)
	} else {
		v, err = ledger.ByNumber(ctx, node, *version)
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		if version == nil {
			return nil, errors.NotFoundf("versions of file %q", fileID)
		}
		return nil, errors.NotFoundf("version %d of file %q", *version, fileID)
	}

	content, err := s.blobs.Get(ctx, v.StorageKey)
	if err != nil {
		return nil, connectionError(err, "fetch content")
	}
	if content == nil {
		return nil, connectionError(errors.New("blob store returned no content"), "fetch content")
	}
	if seeker, ok := content.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			content.Close()
			return nil, connectionError(err, "rewind content")
		}
	}

	return &Retrieval{Content: content, Node: node, Version: v}, nil
}

// ownedFile loads a file node and checks that caller owns it. Folders and
// malformed ids are NotFound.
func (s *FileService) ownedFile(ctx context.Context, caller *models.User, fileID string) (*models.Node, error) {
	node, err := s.ownedNode(ctx, caller, fileID)
	if err != nil {
		return nil, err
	}
	if node.IsDirectory {
		return nil, errors.NotFoundf("file %q", fileID)
	}
	return node, nil
}

func (s *FileService) ownedNode(ctx context.Context, caller *models.User, id string) (*models.Node, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFoundf("node %q", id)
	}
	node, err := s.tree().FindNodeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.NotFoundf("node %q", id)
	}
	if node.OwnerID != caller.ID {
		return nil, errors.Unauthorizedf("node %q belongs to another owner", id)
	}
	return node, nil
}
