package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/outliner/internal/parser"
	"github.com/starford/outliner/internal/storage"
)

const maxImportSize = 10 << 20 // 10 MB

var (
	// Content types an outline may arrive as. The body is sniffed, so an
	// empty format only marks the type as acceptable.
	mimeToFormat = map[string]parser.Format{
		"application/json":         parser.FormatJSON,
		"text/json":                parser.FormatJSON,
		"application/yaml":         parser.FormatYAML,
		"application/x-yaml":       parser.FormatYAML,
		"text/yaml":                parser.FormatYAML,
		"text/x-yaml":              parser.FormatYAML,
		"text/x-opml":              parser.FormatOPML,
		"application/xml":          parser.FormatOPML,
		"text/xml":                 parser.FormatOPML,
		"text/plain":               "",
		"application/octet-stream": "",
	}

	safeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

func (s *Server) importDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data     []byte
		declared parser.Format
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, declared, err = decodeDataURI(rawURL)
	} else {
		data, declared, err = fetchHTTP(rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImportSize)), nil
	}
	if err := checkFormat(data, declared); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("name", "")
	if name == "" {
		name = nameFromURL(rawURL)
	}

	row, err := s.svc.Import(name, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %s (%d nodes)", row.Name, row.NodeCount)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, parser.Format, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	f, ok := mimeToFormat[mime]
	if mime != "" && !ok {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, f, nil
}

// fetchHTTP downloads an outline from an HTTP/HTTPS URL with security checks.
func fetchHTTP(rawURL string) ([]byte, parser.Format, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	f, ok := mimeToFormat[ct]
	if ct != "" && !ok {
		return nil, "", fmt.Errorf("unsupported content type: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxImportSize)
	}
	return data, f, nil
}

// checkFormat verifies the content matches the declared format, if any.
func checkFormat(data []byte, declared parser.Format) error {
	if declared == "" {
		return nil
	}
	if got := parser.Sniff(data); got != declared {
		return fmt.Errorf("content does not match declared format %s (detected: %s)", declared, got)
	}
	return nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// nameFromURL derives a document name from the last URL path segment,
// falling back to a generated one for data URIs and bare hosts.
func nameFromURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if name, ok := storage.NameOf(base); ok {
				return sanitizeName(name)
			}
			base = strings.TrimSuffix(base, path.Ext(base))
			if base != "" && base != "." && base != "/" {
				return sanitizeName(base)
			}
		}
	}
	return "import-" + uuid.New().String()[:8]
}

// sanitizeName strips path separators and unsafe characters.
func sanitizeName(name string) string {
	name = safeNameRe.ReplaceAllString(path.Base(name), "_")
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		name = "import-" + uuid.New().String()[:8]
	}
	return name
}
