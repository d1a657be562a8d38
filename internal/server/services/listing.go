package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/juju/errors"
)

// FolderListing is a folder and its direct children, folders first.
type FolderListing struct {
	Folder   *models.Node
	Children []*models.Node
}

// ListFiles returns every file of the owner, ordered by name.
func (s *FileService) ListFiles(ctx context.Context, ownerEmail string) ([]*models.Node, error) {
	owner, err := s.resolveOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fail(err)
	}
	all, err := s.repomanager.Nodes(s.db).ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fail(connectionError(err, "list files"))
	}
	files := make([]*models.Node, 0, len(all))
	for _, n := range all {
		if !n.IsDirectory {
			files = append(files, n)
		}
	}
	return files, nil
}

// ListFolder returns the contents of folderID, or of the root folder when
// folderID is empty.
func (s *FileService) ListFolder(ctx context.Context, ownerEmail, folderID string) (*FolderListing, error) {
	owner, err := s.resolveOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fail(err)
	}
	folder, err := s.ownedFolder(ctx, owner, folderID)
	if err != nil {
		return nil, fail(err)
	}
	children, err := s.repomanager.Nodes(s.db).ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, fail(connectionError(err, "list folder"))
	}
	return &FolderListing{Folder: folder, Children: children}, nil
}

// CreateFolder makes a folder named name under parentID (the root when
// empty). A sibling with the same name is a Conflict.
func (s *FileService) CreateFolder(ctx context.Context, ownerEmail, parentID, name string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return nil, fail(errors.BadRequestf("invalid folder name %q", name))
	}

	owner, err := s.resolveOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fail(err)
	}
	parent, err := s.ownedFolder(ctx, owner, parentID)
	if err != nil {
		return nil, fail(err)
	}

	folder, err := s.repomanager.Nodes(s.db).Create(ctx, &models.Node{
		Name:        name,
		IsDirectory: true,
		OwnerID:     owner.ID,
		ParentID:    &parent.ID,
	})
	if errors.Is(err, common.ErrConflict) {
		return nil, fail(errors.AlreadyExistsf("%q in this folder", name))
	}
	if err != nil {
		return nil, fail(connectionError(err, "create folder"))
	}
	s.logger.Info(ctx, "folder created", "folder_id", folder.ID, "parent_id", parent.ID)
	return folder, nil
}

// ListVersions returns the completed versions of a file, oldest first.
func (s *FileService) ListVersions(ctx context.Context, ownerEmail, fileID string) ([]*models.FileVersion, error) {
	owner, err := s.resolveOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fail(err)
	}
	node, err := s.ownedFile(ctx, owner, fileID)
	if err != nil {
		return nil, fail(err)
	}
	vs, err := s.ledger().History(ctx, node)
	if err != nil {
		return nil, fail(err)
	}
	return vs, nil
}

func (s *FileService) ownedFolder(ctx context.Context, owner *models.User, folderID string) (*models.Node, error) {
	tree := s.tree()
	if folderID == "" {
		return tree.ResolveTargetFolder(ctx, owner, "")
	}
	folder, err := s.ownedNode(ctx, owner, folderID)
	if err != nil {
		return nil, err
	}
	if err := tree.ValidateWritable(folder, owner).Err(); err != nil {
		return nil, err
	}
	return folder, nil
}
