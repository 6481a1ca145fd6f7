package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/storage"
)

const (
	webpType       = "image/webp"
	maxUploadBytes = 5 << 20
)

// uploadImage stores the multipart file field of c when present and returns
// its URL, or "" when the field is absent.  Only webp images are accepted.
// The local spool file is always removed.
func uploadImage(c echo.Context, up storage.Uploader, field, folder string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, "invalid "+field+" upload", err)
	}
	if err := checkImage(fh); err != nil {
		return "", err
	}

	path, err := spool(fh)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "could not read upload", err)
	}

	url, err := up.Upload(c.Request().Context(), path, folder, webpType)
	if errors.Is(err, storage.ErrDisabled) {
		return "", apperr.New(apperr.InvalidArgument, "image uploads are not available")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "error while uploading image", err)
	}
	return url, nil
}

func checkImage(fh *multipart.FileHeader) error {
	ct := fh.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, "image/") {
		return apperr.New(apperr.InvalidArgument, "only image files are allowed")
	}
	if ct != webpType {
		return apperr.New(apperr.InvalidArgument, "only webp images are allowed")
	}
	if fh.Size > maxUploadBytes {
		return apperr.New(apperr.InvalidArgument, fmt.Sprintf("image exceeds %d bytes", maxUploadBytes))
	}
	return nil
}

// spool copies fh to a temporary file.  The returned path is set whenever a
// file was created, even on error, so the caller can remove it.
func spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*.webp")
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return dst.Name(), err
	}
	return dst.Name(), nil
}

// removeImage deletes a stored image.  Failures leave an orphan object
// behind and are only logged.
func removeImage(ctx context.Context, c echo.Context, up storage.Uploader, url string) {
	if url == "" {
		return
	}
	if err := up.Delete(ctx, url); err != nil {
		c.Logger().Warnf("delete image %s: %v", url, err)
	}
}
