package httpds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"dex/internal/datasource"
)

// URLSource opens one remote document over HTTP. It implements
// datasource.Source.
type URLSource struct {
	client *Client
	url    string
}

// NewURLSource binds a client to one document URL.
func NewURLSource(client *Client, rawURL string) *URLSource {
	return &URLSource{client: client, url: rawURL}
}

// Open fetches the document and returns its body. Non-2xx final statuses are
// errors; retryable statuses were already retried by the client.
func (s *URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpds: status %d from %s", resp.StatusCode, s.url)
	}
	return resp.Body, nil
}

// URLList serves documents from a fixed list of URLs. It implements
// datasource.Lister.
type URLList struct {
	client *Client
	urls   []string
}

// NewURLList builds a lister over urls using client for fetches.
func NewURLList(client *Client, urls []string) *URLList {
	return &URLList{client: client, urls: urls}
}

// List maps each URL to an artifact. Names come from the URL's last path
// segment so document kind detection sees the real extension; URLs whose
// path carries no usable name fall back to a derived safe filename.
func (l *URLList) List(ctx context.Context) ([]datasource.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]datasource.Artifact, 0, len(l.urls))
	for _, raw := range l.urls {
		out = append(out, datasource.Artifact{
			Name:   artifactName(raw),
			Source: NewURLSource(l.client, raw),
		})
	}
	return out, nil
}

func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SafeFilenameFromURL(rawURL)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return SafeFilenameFromURL(rawURL)
	}
	return base
}

var _ datasource.Source = (*URLSource)(nil)
var _ datasource.Lister = (*URLList)(nil)
