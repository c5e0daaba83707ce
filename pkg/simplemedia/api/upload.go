package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const multipartMemory = 32 << 20

// uploadFile reads the "file" part of a multipart request capped at maxBytes.
// The returned file must be closed by the caller.
func uploadFile(w http.ResponseWriter, r *http.Request, recordID int64, maxBytes int64) (simplemedia.UploadAssetRequest, io.Closer, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return simplemedia.UploadAssetRequest{}, nil, err
		}
		return simplemedia.UploadAssetRequest{}, nil, &simplemedia.ValidationError{Field: "file", Message: err.Error()}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return simplemedia.UploadAssetRequest{}, nil, &simplemedia.ValidationError{Field: "file", Message: "is required"}
		}
		return simplemedia.UploadAssetRequest{}, nil, &simplemedia.ValidationError{Field: "file", Message: err.Error()}
	}

	return simplemedia.UploadAssetRequest{
		RecordID: recordID,
		FileName: header.Filename,
		MimeType: mimeType(header),
		Reader:   file,
	}, file, nil
}

func mimeType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// contentTypeFor guesses the media type of ref from its extension.
func contentTypeFor(ref simplemedia.AssetRef, fallback string) string {
	if ct := mime.TypeByExtension(path.Ext(ref.Key)); ct != "" {
		return ct
	}
	return fallback
}

// streamAsset copies the blob behind ref to w.
func streamAsset(w http.ResponseWriter, r *http.Request, service simplemedia.Service, ref simplemedia.AssetRef, contentType string) {
	reader, err := service.OpenAsset(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+ref.BaseName()+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		slog.WarnContext(r.Context(), "Failed to stream asset", "key", ref.Key, "error", err)
	}
}
