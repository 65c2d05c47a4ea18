package statement

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/babyresell/babyresell/internal/item"
)

// Evidence downloads listing photos so an admin can review a dispute
// against what the seller advertised.
type Evidence struct {
	client *http.Client
}

func NewEvidence() *Evidence {
	return &Evidence{client: &http.Client{Timeout: 30 * time.Second}}
}

// Collect saves every image of the listing into dir and returns the paths.
func (e *Evidence) Collect(ctx context.Context, it *item.Item, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	paths := make([]string, 0, len(it.ImageURLs))

	for i, url := range it.ImageURLs {
		path, err := e.download(ctx, url, dir, fmt.Sprintf("%s_%02d", it.ID, i+1))
		if err != nil {
			return paths, fmt.Errorf("downloading image %d of item %s: %w", i+1, it.ID, err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func (e *Evidence) download(ctx context.Context, url, dir, fallback string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, url)
	}

	path := filepath.Join(dir, filename(resp, fallback))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

// filename prefers the server's Content-Disposition name and otherwise
// derives one from fallback and the content type.
func filename(resp *http.Response, fallback string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok && name != "" {
				return fallback + "_" + strings.ReplaceAll(filepath.Base(name), " ", "_")
			}
		}
	}

	ext := ".jpg"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}

	return fallback + ext
}
