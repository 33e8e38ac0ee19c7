package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

const maxMultipartMemory = 32 << 20

// saveUploadedFile copies the named multipart field into a temp file and
// returns its path. The boolean reports whether the field was present. The
// caller owns the temp file and must defer removeStaged so the file is gone
// even when the request exits before the uploader consumes it.
func saveUploadedFile(r *http.Request, field string) (string, bool, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s upload: %w", field, err)
	}
	defer file.Close()

	path, err := copyToTemp(file, header)
	if err != nil {
		return "", true, fmt.Errorf("stage %s upload: %w", field, err)
	}
	return path, true, nil
}

// removeStaged deletes a staged temp file. Uploaders consume staged files
// themselves, so on the happy path this is a no-op on an already-removed
// name; it exists for the early returns in between.
func removeStaged(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func copyToTemp(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(header.Filename)
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
