package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/filevault/internal/api"
	"github.com/dmitrijs2005/filevault/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// uploadChunkSize bounds the data carried by one UploadChunk.
const uploadChunkSize = 64 << 10

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.FileStorageClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) authorize(ctx context.Context) context.Context {
	token := s.AccessToken()
	if token == "" {
		return ctx
	}
	return withAccessToken(ctx, token)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(s.authorize(ctx), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(s.authorize(ctx), desc, cc, method, opts...)
}

// NewFileVaultClient connects to the server at endpointURL. Extra dial
// options are appended to the defaults.
func NewFileVaultClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient(opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewFileStorageClient(conn)
	return nil
}

func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Register creates an owner and keeps its access token for later calls.
func (s *GRPCClient) Register(ctx context.Context, email string) (*api.RegisterResponse, error) {

	resp, err := s.client.Register(ctx, &api.RegisterRequest{Email: email})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetAccessToken(resp.AccessToken)
	return resp, nil
}

func (s *GRPCClient) ListFiles(ctx context.Context) ([]api.Node, error) {
	resp, err := s.client.ListFiles(ctx, &api.ListFilesRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Files, nil
}

func (s *GRPCClient) ListFolder(ctx context.Context, folderID string) (*api.ListFolderResponse, error) {
	resp, err := s.client.ListFolder(ctx, &api.ListFolderRequest{FolderID: folderID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) CreateFolder(ctx context.Context, parentID, name string) (*api.Node, error) {
	resp, err := s.client.CreateFolder(ctx, &api.CreateFolderRequest{ParentID: parentID, Name: name})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Folder, nil
}

func (s *GRPCClient) ListVersions(ctx context.Context, fileID string) ([]api.Version, error) {
	resp, err := s.client.ListVersions(ctx, &api.ListVersionsRequest{FileID: fileID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Versions, nil
}

// Upload streams r as filename into folder (the root folder when empty).
// The header travels with the first chunk, so an empty r still reaches the
// server, which rejects it.
func (s *GRPCClient) Upload(ctx context.Context, r io.Reader, filename, folder string, size int64) (*api.UploadResponse, error) {
	stream, err := s.client.Upload(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	msg := &api.UploadChunk{Filename: filename, Folder: folder, Size: size}
	headerSent := false
	for {
		buf := make([]byte, uploadChunkSize)
		n, rerr := r.Read(buf)
		if n > 0 {
			msg.Data = buf[:n]
			if err := stream.Send(msg); err != nil {
				if errors.Is(err, io.EOF) {
					// the server ended the call; its status comes with CloseAndRecv
					break
				}
				return nil, s.mapError(err)
			}
			headerSent = true
			msg = &api.UploadChunk{}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = stream.CloseSend()
			return nil, fmt.Errorf("read %s: %w", filename, rerr)
		}
	}

	if !headerSent {
		if err := stream.Send(msg); err != nil && !errors.Is(err, io.EOF) {
			return nil, s.mapError(err)
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Download writes the content of fileID (the latest version unless version
// is set) to w and returns the file and version it belongs to.
func (s *GRPCClient) Download(ctx context.Context, fileID string, version *int64, w io.Writer) (*api.Node, *api.Version, error) {
	stream, err := s.client.Download(ctx, &api.DownloadRequest{FileID: fileID, Version: version})
	if err != nil {
		return nil, nil, s.mapError(err)
	}

	var node *api.Node
	var v *api.Version
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return node, v, s.mapError(err)
		}
		if chunk.File != nil {
			node, v = chunk.File, chunk.Version
		}
		if len(chunk.Data) > 0 {
			if _, err := w.Write(chunk.Data); err != nil {
				return node, v, fmt.Errorf("write %s: %w", fileID, err)
			}
		}
	}

	if node == nil {
		return nil, nil, fmt.Errorf("%w: download ended without file metadata", ErrUnavailable)
	}
	return node, v, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrForbidden, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
