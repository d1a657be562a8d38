package versions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.FileVersion) (*models.FileVersion, error)
	HighestNumber(ctx context.Context, nodeID string) (int64, error)
	Latest(ctx context.Context, nodeID string) (*models.FileVersion, error)
	ByNumber(ctx context.Context, nodeID string, number int64) (*models.FileVersion, error)
	FindByHash(ctx context.Context, ownerID, hash string) (*models.FileVersion, error)
	ListByNode(ctx context.Context, nodeID string) ([]*models.FileVersion, error)
	MarkCompleted(ctx context.Context, id string) error
	DeletePending(ctx context.Context, id string) error
	DeleteStalePending(ctx context.Context, ownerID string, olderThan time.Time) ([]*models.FileVersion, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.FileVersion, error)
}
