package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vidash/internal/api"
	"vidash/internal/logging"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

const (
	trimMax = 999999
	// ResultsFile is the default export file name.
	ResultsFile = "results.txt"
)

// Trim is an optional download window in whole seconds, as typed.
type Trim struct {
	Start string
	End   string
}

// fire runs call on a worker, reports the outcome on the loop and always
// refreshes the state afterwards.
func (d *Dashboard) fire(action string, call func(ctx context.Context) error, done func(err error)) {
	timeout := d.cfg.RequestTimeout()
	d.sched.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := call(ctx)
		cancel()
		d.sched.Post(func() {
			if err != nil {
				d.logger.Info("action failed",
					logging.String("action", action),
					logging.Error(err))
			}
			done(err)
			d.channel.Refresh()
		})
	})
}

func failure(prefix string, err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		err = apiErr
	}
	return prefix + ": " + err.Error()
}

// StartAnalysis submits the analysis with the settings currently in the fields.
func (d *Dashboard) StartAnalysis() {
	settings := d.rec.Settings()
	d.publish(d.rec.Notice("Analysis started"))
	d.fire("start", func(ctx context.Context) error {
		return d.client.StartProcess(ctx, settings)
	}, func(err error) {
		if err != nil {
			d.publish(d.rec.Notice(failure("Start failed", err)))
		}
	})
}

// Cancel asks the server to stop the running operation.
func (d *Dashboard) Cancel() {
	d.fire("cancel", d.client.CancelProcess, func(err error) {
		if err != nil {
			d.publish(d.rec.Notice(failure("Cancel failed", err)))
			return
		}
		d.publish(d.rec.Notice("Cancel requested"))
	})
}

// Reset clears the server state and, on success, the local inputs and the
// media error indicator.
func (d *Dashboard) Reset(clearEvents bool) {
	d.fire("reset", func(ctx context.Context) error {
		return d.client.ResetState(ctx, clearEvents)
	}, func(err error) {
		if err != nil {
			d.publish(d.rec.Notice(failure("Reset failed", err)))
			return
		}
		d.resolver.ClearError()
		d.rec.Reset()
		d.publish(d.rec.Notice("State reset"))
	})
}

// ClearVideo removes the video on the server.
func (d *Dashboard) ClearVideo() {
	d.clearFile(reconcile.FileVideo, "clear_video", d.client.ClearVideo)
}

// ClearProtocol removes the protocol file on the server.
func (d *Dashboard) ClearProtocol() {
	d.clearFile(reconcile.FileProtocol, "clear_protocol", d.client.ClearProtocol)
}

func (d *Dashboard) clearFile(kind reconcile.FileKind, action string, call func(context.Context) error) {
	d.fire(action, call, func(err error) {
		if err != nil {
			d.publish(d.rec.Notice(failure("Delete failed", err)))
			return
		}
		d.rec.SetLocalFile(kind, "", 0)
	})
}

// Download asks the server to fetch rawURL, optionally trimmed. Input
// problems are reported without a request.
func (d *Dashboard) Download(rawURL string, trim *Trim) error {
	req, err := BuildDownload(rawURL, trim)
	if err != nil {
		d.publish(d.rec.Notice(invalidText(err)))
		return err
	}
	d.publish(d.rec.Notice("Download started"))
	d.fire("download", func(ctx context.Context) error {
		return d.client.Download(ctx, req)
	}, func(err error) {
		if err != nil {
			d.publish(d.rec.Notice(failure("Download failed", err)))
		}
	})
	return nil
}

type inputError struct {
	text string
}

func (e *inputError) Error() string { return e.text }

func (e *inputError) Unwrap() error { return ErrInvalidInput }

func invalidText(err error) string {
	var ie *inputError
	if errors.As(err, &ie) {
		return ie.text
	}
	return err.Error()
}

// BuildDownload validates a download request. Trim bounds are clamped to
// [0, 999999] and the end must be after the start.
func BuildDownload(rawURL string, trim *Trim) (api.DownloadRequest, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return api.DownloadRequest{}, &inputError{text: "Enter a URL"}
	}
	req := api.DownloadRequest{URL: target}
	if trim == nil {
		return req, nil
	}
	start := snapshot.ClampInt(trim.Start, 0, 0, trimMax)
	end := snapshot.ClampInt(trim.End, 0, 0, trimMax)
	if end <= start {
		return api.DownloadRequest{}, &inputError{text: "End must be after start"}
	}
	req.StartTime, req.EndTime = &start, &end
	return req, nil
}

// Upload sends a local file. The file is checked first; a file that is
// missing, too large or not a video is rejected without a request.
func (d *Dashboard) Upload(kind api.UploadKind, path string) error {
	if d.uploading {
		d.publish(d.rec.Notice("Upload already in progress"))
		return &inputError{text: "upload already in progress"}
	}
	size, err := d.client.CheckUpload(kind, path)
	if err != nil {
		text := uploadErrorText(err)
		d.publish(d.rec.Notice(text))
		return &inputError{text: fmt.Sprintf("%s: %v", text, err)}
	}

	name := filepath.Base(path)
	fileKind := reconcile.FileVideo
	if kind == api.UploadProtocol {
		fileKind = reconcile.FileProtocol
		d.cache.RememberFileSize(name, size)
	}
	d.rec.SetLocalFile(fileKind, name, size)
	d.uploading = true
	d.publish(d.rec.SetProgress(0))
	d.publish(d.rec.Notice("Uploading: 0%"))

	lastPercent := -1
	progress := func(sent, total int64) {
		if total <= 0 {
			return
		}
		percent := int(math.Floor(float64(sent) * 100 / float64(total)))
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		d.sched.Post(func() {
			if !d.uploading {
				return
			}
			d.rec.SetProgress(float64(percent))
			d.publish(d.rec.Notice("Uploading: " + strconv.Itoa(percent) + "%"))
		})
	}
	d.fire("upload_"+string(kind), func(ctx context.Context) error {
		return d.client.Upload(ctx, kind, path, progress)
	}, func(err error) {
		d.uploading = false
		if err != nil {
			d.publish(d.rec.Notice(uploadErrorText(err)))
			return
		}
		d.publish(d.rec.Notice("Upload finished"))
	})
	return nil
}

func uploadErrorText(err error) string {
	switch {
	case errors.Is(err, api.ErrTooLarge):
		return "File too large"
	case errors.Is(err, api.ErrNotVideo):
		return "Not a video file"
	case errors.Is(err, os.ErrNotExist):
		return "File not found"
	default:
		return failure("Upload failed", err)
	}
}

// ExportResults writes the results text to path, or results.txt when path
// is empty, and returns the path written.
func (d *Dashboard) ExportResults(path string) (string, error) {
	view := d.rec.View()
	if !view.Controls.CanExport {
		return "", &inputError{text: "Nothing to export while the analysis runs"}
	}
	if strings.TrimSpace(path) == "" {
		path = ResultsFile
	}
	if err := WriteResults(path, d.rec.Notes()); err != nil {
		d.publish(d.rec.Notice(failure("Export failed", err)))
		return "", err
	}
	d.publish(d.rec.Notice("Results saved to " + path))
	return path, nil
}

// WriteResults stores text as a UTF-8 text file.
func WriteResults(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
