// Package download streams remote source videos to job-private temp files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Failure kinds
const (
	KindTimeout        = "timeout"
	KindBadStatus      = "badStatus"
	KindBadContentType = "badContentType"
	KindTransport      = "transport"
)

// Error classifies a fetch failure so job records can carry a precise cause.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var acceptedContentTypes = []string{
	"video/",
	"application/octet-stream",
	"application/mp4",
}

// Downloader fetches remote objects with an overall deadline and a size cap.
type Downloader struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewDownloader(timeout time.Duration, maxBytes int64) *Downloader {
	return &Downloader{
		client:   &http.Client{},
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

// Fetch streams url into destPath. Progress is reported in whole percentage
// points at deltas of 5 or more to bound callback volume; when the length is
// unknown no progress is reported. On any failure the partial file is
// removed.
func (d *Downloader) Fetch(ctx context.Context, url, destPath string, onProgress func(pct int)) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if reqErr != nil {
		return &Error{Kind: KindTransport, Err: reqErr}
	}

	resp, respErr := d.client.Do(req)
	if respErr != nil {
		return &Error{Kind: classify(respErr), Err: respErr}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindBadStatus, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptableContentType(contentType) {
		return &Error{Kind: KindBadContentType, Err: fmt.Errorf("unsupported content type %q", contentType)}
	}

	out, createErr := os.Create(destPath)
	if createErr != nil {
		return &Error{Kind: KindTransport, Err: createErr}
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(destPath)
		}
	}()

	total := resp.ContentLength
	if total > 0 && d.maxBytes > 0 && total > d.maxBytes {
		err = &Error{Kind: KindTransport, Err: fmt.Errorf("content length %d exceeds limit %d", total, d.maxBytes)}
		return err
	}

	var written int64
	lastReported := -5
	buf := make([]byte, 256*1024)
	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				err = &Error{Kind: KindTransport, Err: writeErr}
				return err
			}
			written += int64(n)
			if d.maxBytes > 0 && written > d.maxBytes {
				err = &Error{Kind: KindTransport, Err: fmt.Errorf("download exceeds limit %d", d.maxBytes)}
				return err
			}
			if total > 0 && onProgress != nil {
				pct := int(written * 100 / total)
				if pct-lastReported >= 5 {
					lastReported = pct
					onProgress(pct)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			err = &Error{Kind: classify(readErr), Err: readErr}
			return err
		}
	}

	if syncErr := out.Sync(); syncErr != nil {
		err = &Error{Kind: KindTransport, Err: syncErr}
		return err
	}
	return nil
}

func acceptableContentType(contentType string) bool {
	for _, accepted := range acceptedContentTypes {
		if strings.HasPrefix(contentType, accepted) {
			return true
		}
	}
	return false
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}
