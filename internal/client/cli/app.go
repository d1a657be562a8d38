package cli

import (
	"context"
	"io"

	"github.com/dmitrijs2005/filevault/internal/api"
	"github.com/dmitrijs2005/filevault/internal/client/client"
	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/dmitrijs2005/filevault/internal/client/repositories/metadata"
)

type vaultClient interface {
	SetAccessToken(token string)
	Register(ctx context.Context, email string) (*api.RegisterResponse, error)
	ListFiles(ctx context.Context) ([]api.Node, error)
	ListFolder(ctx context.Context, folderID string) (*api.ListFolderResponse, error)
	CreateFolder(ctx context.Context, parentID, name string) (*api.Node, error)
	ListVersions(ctx context.Context, fileID string) ([]api.Version, error)
	Upload(ctx context.Context, r io.Reader, filename, folder string, size int64) (*api.UploadResponse, error)
	Download(ctx context.Context, fileID string, version *int64, w io.Writer) (*api.Node, *api.Version, error)
	Close() error
}

// App holds what a command needs: the configuration, the API client and
// the session store.
type App struct {
	config  *config.Config
	client  vaultClient
	session metadata.Repository
	closers []func() error
}

// NewApp opens the session database, connects the API client and restores
// the saved access token.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	repos, err := client.InitDatabase(ctx, c.SessionDB)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewFileVaultClient(c.ServerEndpointAddr)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	app := &App{
		config:  c,
		client:  apiClient,
		session: repos.Metadata,
		closers: []func() error{apiClient.Close, repos.Close},
	}
	if err := app.restoreSession(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) restoreSession(ctx context.Context) error {
	token, ok, err := a.session.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}
	if ok {
		a.client.SetAccessToken(token)
	}
	return nil
}

// Close releases the connection and the session database.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// request bounds a unary call by the configured timeout.
func (a *App) request(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) saveSession(ctx context.Context, email, token string) error {
	if err := a.session.Set(ctx, metadata.KeyEmail, email); err != nil {
		return err
	}
	if err := a.session.Set(ctx, metadata.KeyAccessToken, token); err != nil {
		return err
	}
	a.client.SetAccessToken(token)
	return nil
}
