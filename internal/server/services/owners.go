package services

import (
	"context"
	"database/sql"
	"net/mail"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/juju/errors"
)

// RootFolderName is the name given to every owner's root folder.
const RootFolderName = "/"

// Registration is a freshly created owner with its root folder and an
// access token.
type Registration struct {
	Owner       *models.User
	Root        *models.Node
	AccessToken string
}

// OwnerService registers owners and issues their access tokens.
type OwnerService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewOwnerService constructs an OwnerService using repositories and server config.
func NewOwnerService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, cfg *config.Config) *OwnerService {
	return &OwnerService{
		db:                          db,
		repomanager:                 m,
		logger:                      logger.With("module", "owners"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates the owner and its root folder in one transaction. An
// already registered email is a Conflict.
func (s *OwnerService) Register(ctx context.Context, email string) (*Registration, error) {
	addr, err := mail.ParseAddress(normalizeEmail(email))
	if err != nil || addr.Name != "" {
		return nil, fail(errors.BadRequestf("invalid email %q", email))
	}

	reg := &Registration{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		owner, err := s.repomanager.Users(tx).Create(ctx, &models.User{Email: addr.Address})
		if err != nil {
			return err
		}
		root, err := s.repomanager.Nodes(tx).Create(ctx, &models.Node{
			Name:        RootFolderName,
			IsDirectory: true,
			OwnerID:     owner.ID,
		})
		if err != nil {
			return err
		}
		reg.Owner, reg.Root = owner, root
		return nil
	})
	if errors.Is(err, common.ErrConflict) {
		return nil, fail(errors.AlreadyExistsf("owner %q", addr.Address))
	}
	if err != nil {
		return nil, fail(connectionError(err, "register owner"))
	}

	reg.AccessToken, err = s.token(reg.Owner.Email)
	if err != nil {
		return nil, fail(err)
	}
	s.logger.Info(ctx, "owner registered", "owner_id", reg.Owner.ID)
	return reg, nil
}

// IssueToken signs a fresh access token for an existing owner.
func (s *OwnerService) IssueToken(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	owner, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return "", fail(errors.Unauthorizedf("unknown owner %q", email))
	}
	if err != nil {
		return "", fail(connectionError(err, "resolve owner"))
	}
	tok, err := s.token(owner.Email)
	if err != nil {
		return "", fail(err)
	}
	return tok, nil
}

func (s *OwnerService) token(email string) (string, error) {
	tok, err := auth.GenerateToken(email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", connectionError(err, "sign token")
	}
	return tok, nil
}
