package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	"vidash/internal/logging"
)

// ErrNotVideo rejects video uploads whose content is not a recognised
// video container.
var ErrNotVideo = errors.New("file is not a recognised video")

// UploadKind selects the upload endpoint.
type UploadKind string

const (
	UploadVideo    UploadKind = "video"
	UploadProtocol UploadKind = "protocol"
)

func (k UploadKind) path() string {
	if k == UploadProtocol {
		return "/protocol/upload"
	}
	return "/upload"
}

// ProgressFunc receives the number of file bytes sent so far.
type ProgressFunc func(sent, total int64)

// CheckUpload validates a local file before upload: it must exist, fit the
// configured size limit and, for videos, look like a video container. It
// returns the file size.
func (c *Client) CheckUpload(kind UploadKind, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("upload %s: is a directory", path)
	}
	if c.maxUpload > 0 && info.Size() > c.maxUpload {
		return info.Size(), fmt.Errorf("%s: %w", filepath.Base(path), ErrTooLarge)
	}
	if kind != UploadVideo {
		return info.Size(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	head := make([]byte, 261)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read upload header: %w", err)
	}
	if !filetype.IsVideo(head[:n]) {
		return info.Size(), fmt.Errorf("%s: %w", filepath.Base(path), ErrNotVideo)
	}
	return info.Size(), nil
}

// Upload streams the file at path as a multipart "file" field. progress,
// when set, is called as bytes leave the client.
func (c *Client) Upload(ctx context.Context, kind UploadKind, path string, progress ProgressFunc) error {
	size, err := c.CheckUpload(kind, path)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: file, total: size, fn: progress}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, kind.path(), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("upload complete",
		logging.String("kind", string(kind)),
		logging.String("file", filepath.Base(path)),
		logging.Int64("bytes", size))
	return nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
