package grpc

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/api"
	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "grpc-test-secret"

type fakeFiles struct {
	uploadReq     services.UploadRequest
	uploadContent []byte
	uploadRes     *services.UploadResult
	uploadErr     error

	getFileID  string
	getVersion *int64
	getRes     *services.Retrieval
	getErr     error

	files   []*models.Node
	listing *services.FolderListing
	created *models.Node
	history []*models.FileVersion
	err     error

	lastOwner string
}

func (f *fakeFiles) Upload(ctx context.Context, req services.UploadRequest) (*services.UploadResult, error) {
	f.uploadReq = req
	f.lastOwner = req.OwnerEmail
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	f.uploadContent = data
	return f.uploadRes, f.uploadErr
}

func (f *fakeFiles) Get(ctx context.Context, fileID, callerEmail string, version *int64) (*services.Retrieval, error) {
	f.getFileID, f.getVersion, f.lastOwner = fileID, version, callerEmail
	return f.getRes, f.getErr
}

func (f *fakeFiles) ListFiles(ctx context.Context, ownerEmail string) ([]*models.Node, error) {
	f.lastOwner = ownerEmail
	return f.files, f.err
}

func (f *fakeFiles) ListFolder(ctx context.Context, ownerEmail, folderID string) (*services.FolderListing, error) {
	f.lastOwner = ownerEmail
	return f.listing, f.err
}

func (f *fakeFiles) CreateFolder(ctx context.Context, ownerEmail, parentID, name string) (*models.Node, error) {
	f.lastOwner = ownerEmail
	return f.created, f.err
}

func (f *fakeFiles) ListVersions(ctx context.Context, ownerEmail, fileID string) ([]*models.FileVersion, error) {
	f.lastOwner = ownerEmail
	return f.history, f.err
}

type fakeOwners struct {
	email string
	reg   *services.Registration
	err   error
}

func (f *fakeOwners) Register(ctx context.Context, email string) (*services.Registration, error) {
	f.email = email
	return f.reg, f.err
}

func newTestServer(files *fakeFiles, owners *fakeOwners) *GRPCServer {
	return &GRPCServer{
		address:   "127.0.0.1:0",
		files:     files,
		owners:    owners,
		logger:    logging.Nop(),
		jwtSecret: []byte(testSecret),
	}
}

// startServer serves s over an in-memory listener and returns a client
// connected to it.
func startServer(t *testing.T, s *GRPCServer) *api.FileStorageClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return api.NewFileStorageClient(conn)
}

func authContext(t *testing.T, email string) context.Context {
	t.Helper()
	token, err := auth.GenerateToken(email, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
}

func strPtr(s string) *string { return &s }
