package nodes

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, node *models.Node) (*models.Node, error)
	GetByID(ctx context.Context, id string) (*models.Node, error)
	GetRoot(ctx context.Context, ownerID string) (*models.Node, error)
	GetDirectoryByName(ctx context.Context, ownerID, name string) (*models.Node, error)
	FindDirectoryByName(ctx context.Context, name string) (*models.Node, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Node, error)
	ListChildren(ctx context.Context, parentID string) ([]*models.Node, error)
	DeleteFileWithoutVersions(ctx context.Context, id string) (bool, error)
}
