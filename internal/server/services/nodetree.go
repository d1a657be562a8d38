package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/nodes"
	"github.com/juju/errors"
)

// NodeTree answers placement questions about an owner's folder tree.
type NodeTree struct {
	nodes nodes.Repository
}

func NewNodeTree(repo nodes.Repository) *NodeTree {
	return &NodeTree{nodes: repo}
}

// ResolveTargetFolder returns the owner's root folder when folder is empty,
// otherwise the owner's folder with that name. When the owner has no such
// folder, a folder of that name belonging to someone else is returned so the
// caller's ownership check can classify it.
func (t *NodeTree) ResolveTargetFolder(ctx context.Context, owner *models.User, folder string) (*models.Node, error) {
	if folder == "" {
		root, err := t.nodes.GetRoot(ctx, owner.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errors.NotFoundf("root folder")
		}
		if err != nil {
			return nil, connectionError(err, "resolve root folder")
		}
		return root, nil
	}

	dir, err := t.nodes.GetDirectoryByName(ctx, owner.ID, folder)
	if errors.Is(err, common.ErrorNotFound) {
		// Another owner's folder is returned as is; ValidateWritable rejects it.
		dir, err = t.nodes.FindDirectoryByName(ctx, folder)
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, errors.NotFoundf("folder %q", folder)
	}
	if err != nil {
		return nil, connectionError(err, "resolve folder")
	}
	return dir, nil
}

// ValidateWritable checks that folder exists, is a folder and belongs to owner.
func (t *NodeTree) ValidateWritable(folder *models.Node, owner *models.User) Outcome {
	if folder == nil || !folder.IsDirectory {
		return Outcome{Kind: KindNotFound, Message: "folder not found"}
	}
	if owner == nil || folder.OwnerID != owner.ID {
		return Outcome{Kind: KindUnauthorized, Message: "folder belongs to another owner"}
	}
	return Outcome{Kind: KindOK}
}

// FindExistingFileByName returns the owner's file named filename directly
// inside folder, or nil when there is none.
func (t *NodeTree) FindExistingFileByName(ctx context.Context, owner *models.User, folder *models.Node, filename string) (*models.Node, error) {
	children, err := t.nodes.ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, connectionError(err, "list folder")
	}
	for _, n := range children {
		if !n.IsDirectory && n.OwnerID == owner.ID && n.Name == filename {
			return n, nil
		}
	}
	return nil, nil
}

// FindNodeByID returns the node or nil when it does not exist. Ownership is
// checked by the caller.
func (t *NodeTree) FindNodeByID(ctx context.Context, id string) (*models.Node, error) {
	n, err := t.nodes.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, connectionError(err, fmt.Sprintf("load node %s", id))
	}
	return n, nil
}
