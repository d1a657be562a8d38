// Package grpc exposes the file services over the FileStorage gRPC API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/filevault/internal/api"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"google.golang.org/grpc"
)

type fileService interface {
	Upload(ctx context.Context, req services.UploadRequest) (*services.UploadResult, error)
	Get(ctx context.Context, fileID, callerEmail string, version *int64) (*services.Retrieval, error)
	ListFiles(ctx context.Context, ownerEmail string) ([]*models.Node, error)
	ListFolder(ctx context.Context, ownerEmail, folderID string) (*services.FolderListing, error)
	CreateFolder(ctx context.Context, ownerEmail, parentID, name string) (*models.Node, error)
	ListVersions(ctx context.Context, ownerEmail, fileID string) ([]*models.FileVersion, error)
}

type ownerService interface {
	Register(ctx context.Context, email string) (*services.Registration, error)
}

type GRPCServer struct {
	api.UnimplementedFileStorageServer
	address   string
	files     fileService
	owners    ownerService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, fs *services.FileService, os *services.OwnerService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		files:     fs,
		owners:    os,
		jwtSecret: []byte(secretKey),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	api.RegisterFileStorageServer(srv, s)
	return srv
}
