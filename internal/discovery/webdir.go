package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

const (
	webdirTimeout  = 30 * time.Second
	maxWebdirBytes = 256 * 1024
)

// phoneRe finds Indian mobile numbers with optional country code in
// extracted page text.
var phoneRe = regexp.MustCompile(`(\+91[-\s]?)?[0]?[6789]\d{9}`)

// WebDirectory scrapes a listing page for vendors. The page is reduced to
// readable text first, then phone numbers are extracted with the line they
// appear on used as the display name.
type WebDirectory struct {
	SourceName string
	// URL is a template with %s placeholders for category and location.
	URL    string
	Client *http.Client
}

func (w *WebDirectory) Name() string { return w.SourceName }

func (w *WebDirectory) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: webdirTimeout}
}

func (w *WebDirectory) Search(ctx context.Context, category protocol.VendorCategory, location string) ([]protocol.Candidate, error) {
	rawURL := fmt.Sprintf(w.URL, url.QueryEscape(string(category)), url.QueryEscape(location))
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("webdir %s: invalid URL: %w", w.SourceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("webdir %s: %w", w.SourceName, err)
	}
	req.Header.Set("User-Agent", "tolmol-scout/1.0")

	resp, err := w.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("webdir %s: %v: %w", w.SourceName, err, protocol.ErrDiscoverySource)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webdir %s: HTTP %d: %w", w.SourceName, resp.StatusCode, protocol.ErrDiscoverySource)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return nil, fmt.Errorf("webdir %s: parse: %w", w.SourceName, err)
	}
	var textBuf bytes.Buffer
	if err := article.RenderText(&textBuf); err != nil {
		return nil, fmt.Errorf("webdir %s: render: %w", w.SourceName, err)
	}
	text := textBuf.String()
	if len(text) > maxWebdirBytes {
		text = text[:maxWebdirBytes]
	}

	return w.extract(text, category, location), nil
}

// extract walks the text line by line and emits one candidate per phone
// number found, using the text before the number on the same line as the
// name.
func (w *WebDirectory) extract(text string, category protocol.VendorCategory, location string) []protocol.Candidate {
	var out []protocol.Candidate
	for _, line := range strings.Split(text, "\n") {
		m := phoneRe.FindStringIndex(line)
		if m == nil {
			continue
		}
		name := strings.Trim(strings.TrimSpace(line[:m[0]]), "-–:|,")
		out = append(out, protocol.Candidate{
			Phone:    line[m[0]:m[1]],
			Name:     strings.TrimSpace(name),
			Category: category,
			Location: location,
			Source:   w.SourceName,
		})
	}
	return out
}
