package batch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// downloadTimeout bounds the whole fetch, connect included.
const downloadTimeout = 60 * time.Second

var downloadClient = &http.Client{Timeout: downloadTimeout}

// download fetches rawURL to a uniquely named file in the temp directory and
// returns the local path plus the name the remote file should be known as.
func download(ctx context.Context, rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "document.pdf"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("%w: %s returned status %d", ErrDownloadFailed, rawURL, resp.StatusCode)
	}

	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("docscribe-%s-%s", uuid.New().String()[:8], name))
	f, err := os.Create(localPath)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(localPath)
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(localPath)
		return "", "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return localPath, name, nil
}
