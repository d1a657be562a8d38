package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "filevault.FileStorage"

const (
	FullMethodRegister     = "/" + ServiceName + "/Register"
	FullMethodListFiles    = "/" + ServiceName + "/ListFiles"
	FullMethodListFolder   = "/" + ServiceName + "/ListFolder"
	FullMethodCreateFolder = "/" + ServiceName + "/CreateFolder"
	FullMethodListVersions = "/" + ServiceName + "/ListVersions"
	FullMethodUpload       = "/" + ServiceName + "/Upload"
	FullMethodDownload     = "/" + ServiceName + "/Download"
)

type UploadServer = grpc.ClientStreamingServer[UploadChunk, UploadResponse]
type DownloadServer = grpc.ServerStreamingServer[DownloadChunk]

type UploadClient = grpc.ClientStreamingClient[UploadChunk, UploadResponse]
type DownloadClient = grpc.ServerStreamingClient[DownloadChunk]

// FileStorageServer is the server API of the FileStorage service.
type FileStorageServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
	ListFolder(context.Context, *ListFolderRequest) (*ListFolderResponse, error)
	CreateFolder(context.Context, *CreateFolderRequest) (*CreateFolderResponse, error)
	ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error)
	Upload(UploadServer) error
	Download(*DownloadRequest, DownloadServer) error
}

// UnimplementedFileStorageServer answers every call with codes.Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedFileStorageServer struct{}

func (UnimplementedFileStorageServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}

func (UnimplementedFileStorageServer) ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListFiles not implemented")
}

func (UnimplementedFileStorageServer) ListFolder(context.Context, *ListFolderRequest) (*ListFolderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListFolder not implemented")
}

func (UnimplementedFileStorageServer) CreateFolder(context.Context, *CreateFolderRequest) (*CreateFolderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateFolder not implemented")
}

func (UnimplementedFileStorageServer) ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListVersions not implemented")
}

func (UnimplementedFileStorageServer) Upload(UploadServer) error {
	return status.Error(codes.Unimplemented, "method Upload not implemented")
}

func (UnimplementedFileStorageServer) Download(*DownloadRequest, DownloadServer) error {
	return status.Error(codes.Unimplemented, "method Download not implemented")
}

// RegisterFileStorageServer registers srv with the gRPC server s.
func RegisterFileStorageServer(s grpc.ServiceRegistrar, srv FileStorageServer) {
	s.RegisterService(&FileStorageServiceDesc, srv)
}

// FileStorageServiceDesc describes the FileStorage service for grpc.Server.
var FileStorageServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileStorageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(FullMethodRegister, FileStorageServer.Register)},
		{MethodName: "ListFiles", Handler: unaryHandler(FullMethodListFiles, FileStorageServer.ListFiles)},
		{MethodName: "ListFolder", Handler: unaryHandler(FullMethodListFolder, FileStorageServer.ListFolder)},
		{MethodName: "CreateFolder", Handler: unaryHandler(FullMethodCreateFolder, FileStorageServer.CreateFolder)},
		{MethodName: "ListVersions", Handler: unaryHandler(FullMethodListVersions, FileStorageServer.ListVersions)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Upload", Handler: uploadHandler, ClientStreams: true},
		{StreamName: "Download", Handler: downloadHandler, ServerStreams: true},
	},
	Metadata: "filevault.proto",
}

func unaryHandler[Req, Res any](
	fullMethod string,
	call func(FileStorageServer, context.Context, *Req) (*Res, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FileStorageServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FileStorageServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func uploadHandler(srv any, stream grpc.ServerStream) error {
	return srv.(FileStorageServer).Upload(&grpc.GenericServerStream[UploadChunk, UploadResponse]{ServerStream: stream})
}

func downloadHandler(srv any, stream grpc.ServerStream) error {
	in := new(DownloadRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FileStorageServer).Download(in, &grpc.GenericServerStream[DownloadRequest, DownloadChunk]{ServerStream: stream})
}

// FileStorageClient is the client API of the FileStorage service. Every call
// is sent with the CBOR content subtype.
type FileStorageClient struct {
	cc grpc.ClientConnInterface
}

func NewFileStorageClient(cc grpc.ClientConnInterface) *FileStorageClient {
	return &FileStorageClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileStorageClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, FullMethodRegister, in, opts)
}

func (c *FileStorageClient) ListFiles(ctx context.Context, in *ListFilesRequest, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	return invoke[ListFilesResponse](ctx, c.cc, FullMethodListFiles, in, opts)
}

func (c *FileStorageClient) ListFolder(ctx context.Context, in *ListFolderRequest, opts ...grpc.CallOption) (*ListFolderResponse, error) {
	return invoke[ListFolderResponse](ctx, c.cc, FullMethodListFolder, in, opts)
}

func (c *FileStorageClient) CreateFolder(ctx context.Context, in *CreateFolderRequest, opts ...grpc.CallOption) (*CreateFolderResponse, error) {
	return invoke[CreateFolderResponse](ctx, c.cc, FullMethodCreateFolder, in, opts)
}

func (c *FileStorageClient) ListVersions(ctx context.Context, in *ListVersionsRequest, opts ...grpc.CallOption) (*ListVersionsResponse, error) {
	return invoke[ListVersionsResponse](ctx, c.cc, FullMethodListVersions, in, opts)
}

func (c *FileStorageClient) Upload(ctx context.Context, opts ...grpc.CallOption) (UploadClient, error) {
	stream, err := c.cc.NewStream(ctx, &FileStorageServiceDesc.Streams[0], FullMethodUpload, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[UploadChunk, UploadResponse]{ClientStream: stream}, nil
}

func (c *FileStorageClient) Download(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (DownloadClient, error) {
	stream, err := c.cc.NewStream(ctx, &FileStorageServiceDesc.Streams[1], FullMethodDownload, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[DownloadRequest, DownloadChunk]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
