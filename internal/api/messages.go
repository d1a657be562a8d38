package api

import "time"

type RegisterRequest struct {
	Email string `cbor:"email"`
}

type RegisterResponse struct {
	AccessToken  string `cbor:"access_token"`
	OwnerID      string `cbor:"owner_id"`
	RootFolderID string `cbor:"root_folder_id"`
}

// Node is a folder or file as seen by clients. ParentID is empty for the
// root folder.
type Node struct {
	ID          string    `cbor:"id"`
	Name        string    `cbor:"name"`
	IsDirectory bool      `cbor:"is_directory"`
	ParentID    string    `cbor:"parent_id,omitempty"`
	ContentType string    `cbor:"content_type,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

type Version struct {
	Number    int64     `cbor:"number"`
	Hash      string    `cbor:"hash"`
	Size      int64     `cbor:"size"`
	CreatedAt time.Time `cbor:"created_at"`
}

type ListFilesRequest struct{}

type ListFilesResponse struct {
	Files []Node `cbor:"files"`
}

// ListFolderRequest lists FolderID, or the root folder when empty.
type ListFolderRequest struct {
	FolderID string `cbor:"folder_id,omitempty"`
}

type ListFolderResponse struct {
	Folder   Node   `cbor:"folder"`
	Children []Node `cbor:"children"`
}

// CreateFolderRequest creates Name under ParentID, or under the root folder
// when empty.
type CreateFolderRequest struct {
	ParentID string `cbor:"parent_id,omitempty"`
	Name     string `cbor:"name"`
}

type CreateFolderResponse struct {
	Folder Node `cbor:"folder"`
}

type ListVersionsRequest struct {
	FileID string `cbor:"file_id"`
}

type ListVersionsResponse struct {
	Versions []Version `cbor:"versions"`
}

// UploadChunk is one message of an upload stream. The first message carries
// the file header (Filename, Folder, Size); every message may carry data.
type UploadChunk struct {
	Filename string `cbor:"filename,omitempty"`
	Folder   string `cbor:"folder,omitempty"`
	Size     int64  `cbor:"size,omitempty"`
	Data     []byte `cbor:"data,omitempty"`
}

type UploadResponse struct {
	File    Node    `cbor:"file"`
	Version Version `cbor:"version"`
	NewFile bool    `cbor:"new_file"`
}

// DownloadRequest asks for the latest version of FileID, or for exactly
// Version when set.
type DownloadRequest struct {
	FileID  string `cbor:"file_id"`
	Version *int64 `cbor:"version,omitempty"`
}

// DownloadChunk is one message of a download stream. The first message
// carries File and Version, the following ones carry data.
type DownloadChunk struct {
	File    *Node    `cbor:"file,omitempty"`
	Version *Version `cbor:"version,omitempty"`
	Data    []byte   `cbor:"data,omitempty"`
}
