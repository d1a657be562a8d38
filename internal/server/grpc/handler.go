package grpc

import (
	"context"
	"io"

	"github.com/dmitrijs2005/filevault/internal/api"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// downloadChunkSize bounds the data carried by one DownloadChunk.
const downloadChunkSize = 64 << 10

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request")

	reg, err := s.owners.Register(ctx, req.Email)
	if err != nil {
		return nil, s.statusError(ctx, "register", err)
	}

	s.logger.Info(ctx, "Registered", "owner_id", reg.Owner.ID)
	return &api.RegisterResponse{
		AccessToken:  reg.AccessToken,
		OwnerID:      reg.Owner.ID,
		RootFolderID: reg.Root.ID,
	}, nil
}

func (s *GRPCServer) ListFiles(ctx context.Context, _ *api.ListFilesRequest) (*api.ListFilesResponse, error) {
	email, err := ownerEmail(ctx)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListFiles(ctx, email)
	if err != nil {
		return nil, s.statusError(ctx, "list files", err)
	}

	return &api.ListFilesResponse{Files: nodesToAPI(files)}, nil
}

func (s *GRPCServer) ListFolder(ctx context.Context, req *api.ListFolderRequest) (*api.ListFolderResponse, error) {
	email, err := ownerEmail(ctx)
	if err != nil {
		return nil, err
	}

	listing, err := s.files.ListFolder(ctx, email, req.FolderID)
	if err != nil {
		return nil, s.statusError(ctx, "list folder", err)
	}

	return &api.ListFolderResponse{
		Folder:   nodeToAPI(listing.Folder),
		Children: nodesToAPI(listing.Children),
	}, nil
}

func (s *GRPCServer) CreateFolder(ctx context.Context, req *api.CreateFolderRequest) (*api.CreateFolderResponse, error) {
	email, err := ownerEmail(ctx)
	if err != nil {
		return nil, err
	}

	folder, err := s.files.CreateFolder(ctx, email, req.ParentID, req.Name)
	if err != nil {
		return nil, s.statusError(ctx, "create folder", err)
	}

	return &api.CreateFolderResponse{Folder: nodeToAPI(folder)}, nil
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *api.ListVersionsRequest) (*api.ListVersionsResponse, error) {
	email, err := ownerEmail(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.files.ListVersions(ctx, email, req.FileID)
	if err != nil {
		return nil, s.statusError(ctx, "list versions", err)
	}

	out := make([]api.Version, 0, len(history))
	for _, v := range history {
		out = append(out, versionToAPI(v))
	}
	return &api.ListVersionsResponse{Versions: out}, nil
}

// Upload reads the file header from the first chunk and streams the data of
// every chunk into the upload pipeline.
func (s *GRPCServer) Upload(stream api.UploadServer) error {
	ctx := stream.Context()
	email, err := ownerEmail(ctx)
	if err != nil {
		return err
	}

	first, err := stream.Recv()
	if err == io.EOF {
		return status.Error(codes.InvalidArgument, "empty upload stream")
	}
	if err != nil {
		return err
	}

	res, err := s.files.Upload(ctx, services.UploadRequest{
		Content:    &chunkReader{stream: stream, buf: first.Data},
		Filename:   first.Filename,
		Size:       first.Size,
		Folder:     first.Folder,
		OwnerEmail: email,
	})
	if err != nil {
		return s.statusError(ctx, "upload", err)
	}

	s.logger.Info(ctx, "Stored", "file_id", res.Node.ID, "version", res.Version.Version)
	return stream.SendAndClose(&api.UploadResponse{
		File:    nodeToAPI(res.Node),
		Version: versionToAPI(res.Version),
		NewFile: res.NewFile,
	})
}

// Download sends the file metadata first, then the content in chunks.
func (s *GRPCServer) Download(req *api.DownloadRequest, stream api.DownloadServer) error {
	ctx := stream.Context()
	email, err := ownerEmail(ctx)
	if err != nil {
		return err
	}

	r, err := s.files.Get(ctx, req.FileID, email, req.Version)
	if err != nil {
		return s.statusError(ctx, "download", err)
	}
	defer r.Content.Close()

	node := nodeToAPI(r.Node)
	version := versionToAPI(r.Version)
	if err := stream.Send(&api.DownloadChunk{File: &node, Version: &version}); err != nil {
		return err
	}

	for {
		// a sent message must not be modified afterwards
		buf := make([]byte, downloadChunkSize)
		n, err := r.Content.Read(buf)
		if n > 0 {
			if err := stream.Send(&api.DownloadChunk{Data: buf[:n]}); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			s.logger.Error(ctx, "download read failed", "file_id", req.FileID, "error", err)
			return status.Error(codes.Unavailable, "connection error")
		}
	}
}

// chunkReader turns the remaining messages of an upload stream into an
// io.Reader.
type chunkReader struct {
	stream api.UploadServer
	buf    []byte
	done   bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}
		msg, err := r.stream.Recv()
		if err == io.EOF {
			r.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.buf = msg.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func nodeToAPI(n *models.Node) api.Node {
	if n == nil {
		return api.Node{}
	}
	out := api.Node{
		ID:          n.ID,
		Name:        n.Name,
		IsDirectory: n.IsDirectory,
		ContentType: n.ContentType,
		CreatedAt:   n.CreatedAt,
	}
	if n.ParentID != nil {
		out.ParentID = *n.ParentID
	}
	return out
}

func nodesToAPI(ns []*models.Node) []api.Node {
	out := make([]api.Node, 0, len(ns))
	for _, n := range ns {
		out = append(out, nodeToAPI(n))
	}
	return out
}

func versionToAPI(v *models.FileVersion) api.Version {
	if v == nil {
		return api.Version{}
	}
	return api.Version{
		Number:    v.Version,
		Hash:      v.Hash,
		Size:      v.Size,
		CreatedAt: v.CreatedAt,
	}
}
