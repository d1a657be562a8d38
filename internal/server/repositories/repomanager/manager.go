package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/nodes"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works against the pool and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Nodes(db dbx.DBTX) nodes.Repository
	Versions(db dbx.DBTX) versions.Repository
}
