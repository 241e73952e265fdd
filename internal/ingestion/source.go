// Package ingestion is StudyMate's document source. It turns files,
// directories and URLs into [rag.Document] values: page text that has been
// extracted, cleaned and labelled with a display name.
//
// Plain text and Markdown files are split into pages on form feeds (\f), the
// page separator emitted by pdftotext and similar extractors. HTML is reduced
// to its main content with goquery and treated as a single page.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/version"
)

// DefaultMaxBytes caps the size of a single source.
const DefaultMaxBytes = 32 << 20

// UnsupportedFormatError reports a file extension the loader can not read.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("ingestion: unsupported format %q for %s (want .txt, .md or .html)", e.Ext, e.Path)
}

// Config holds the configuration for a Loader.
type Config struct {
	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// MaxBytes caps the size of one file or response body. Defaults to
	// DefaultMaxBytes if zero.
	MaxBytes int64
}

// Loader reads documents from disk and the web.
type Loader struct {
	cfg        Config
	httpClient *http.Client
}

// NewLoader constructs a Loader. A nil cfg selects the defaults.
func NewLoader(cfg *Config) *Loader {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "studymate/" + version.Version + " (document ingestion)"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	return &Loader{
		cfg:        c,
		httpClient: &http.Client{Timeout: c.HTTPTimeout},
	}
}

// Load resolves src as a URL, a directory or a single file. Directories
// yield one document per supported file.
func (l *Loader) Load(ctx context.Context, src string) ([]rag.Document, error) {
	if IsURL(src) {
		doc, err := l.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return []rag.Document{doc}, nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	if info.IsDir() {
		return l.LoadDir(src)
	}
	doc, err := l.LoadFile(src)
	if err != nil {
		return nil, err
	}
	return []rag.Document{doc}, nil
}

// LoadFile reads one .txt, .md or .html file.
func (l *Loader) LoadFile(path string) (rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported(ext) {
		return rag.Document{}, &UnsupportedFormatError{Path: path, Ext: ext}
	}

	f, err := os.Open(path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, l.cfg.MaxBytes+1))
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	if int64(len(raw)) > l.cfg.MaxBytes {
		return rag.Document{}, fmt.Errorf("ingestion: %s exceeds %d bytes", path, l.cfg.MaxBytes)
	}

	doc := rag.Document{Name: DocumentName(path), SizeBytes: int64(len(raw))}
	if isHTML(ext) {
		text, err := ExtractHTML(strings.NewReader(string(raw)))
		if err != nil {
			return rag.Document{}, fmt.Errorf("ingestion: parse %s: %w", path, err)
		}
		doc.Pages = SplitPages(text)
	} else {
		doc.Pages = SplitPages(string(raw))
	}
	return doc, nil
}

// LoadDir loads every supported file directly inside dir, in name order.
// Subdirectories and unsupported files are skipped.
func (l *Loader) LoadDir(dir string) ([]rag.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !supported(strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	docs := make([]rag.Document, 0, len(names))
	for _, name := range names {
		doc, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Fetch downloads url. HTML responses are reduced to their main content;
// anything else is read as plain text.
func (l *Loader) Fetch(ctx context.Context, url string) (rag.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rag.Document{}, fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: reading body: %w", err)
	}
	if int64(len(raw)) > l.cfg.MaxBytes {
		return rag.Document{}, fmt.Errorf("ingestion: %s exceeds %d bytes", url, l.cfg.MaxBytes)
	}

	doc := rag.Document{Name: DocumentName(url), SizeBytes: int64(len(raw))}
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text, err := ExtractHTML(strings.NewReader(string(raw)))
		if err != nil {
			return rag.Document{}, fmt.Errorf("ingestion: parse %s: %w", url, err)
		}
		doc.Pages = SplitPages(text)
	} else {
		doc.Pages = SplitPages(string(raw))
	}
	return doc, nil
}

// contentSelectors are tried in order to find the main content of a page.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
}

// ExtractHTML returns the cleaned text of the page's main content area,
// falling back to the whole body.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var content string
	for _, sel := range contentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			content = s.Text()
			break
		}
	}
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}
	return Clean(content), nil
}

// SplitPages splits text on form feeds into 1-based pages and cleans each
// one. Pages left empty are dropped but keep their numbering, so page N of
// the source is always page N in citations.
func SplitPages(text string) []segment.Page {
	var pages []segment.Page
	for i, raw := range strings.Split(text, "\f") {
		cleaned := Clean(raw)
		if cleaned == "" {
			continue
		}
		pages = append(pages, segment.Page{Number: i + 1, Text: cleaned})
	}
	return pages
}

// Clean strips NUL bytes, maps the private-use bullet glyph common in PDF
// extractions to "•" and collapses all whitespace runs to single spaces.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\uf0b7", "•")
	return strings.Join(strings.Fields(text), " ")
}

// IsURL reports whether src looks like an http(s) URL.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func supported(ext string) bool {
	switch ext {
	case ".txt", ".text", ".md", ".markdown":
		return true
	}
	return isHTML(ext)
}

func isHTML(ext string) bool {
	return ext == ".html" || ext == ".htm"
}
