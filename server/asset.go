package server

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prior-it/tweb/core"
)

// DefaultChunkSize is the chunk size that is used for static assets when none is configured.
const DefaultChunkSize = 8

// EncodeAsset reads the file at path into a 200 response that is written with chunked transfer
// encoding. The content type is derived from the file extension, or sniffed from the contents if
// the extension is unknown. Read failures wrap [core.ErrAssetIO].
func EncodeAsset(path string, chunkSize int) (Response, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", core.ErrAssetIO, err)
	}
	return Response{
		StatusCode: http.StatusOK,
		Reason:     "OK",
		Header:     []HeaderField{{Name: "Content-Type", Value: ContentType(path, data)}},
		Body:       data,
		ChunkSize:  chunkSize,
	}, nil
}

func ContentType(path string, data []byte) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); len(contentType) > 0 {
		return contentType
	}
	return http.DetectContentType(data)
}
