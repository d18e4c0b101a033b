// Package resolver turns an image source token into raw bytes, whether
// it names a local file (directly or via base-path fallbacks) or a
// remote http(s) address.
package resolver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mie-tools/mie/internal/apperr"
	"github.com/mie-tools/mie/internal/scanner"
)

// FileReader reads local files. The zero-value pipeline uses the OS
// filesystem; tests substitute an in-memory map.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Fetcher retrieves remote resources. Implementations must bound each
// request so one unreachable host cannot stall a whole document.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Source is the outcome of a successful resolution.
type Source struct {
	Data  []byte
	Local bool
	// Identifier is the resolved path or URL actually read. Failure
	// reporting and MIME lookup use this, not the raw token.
	Identifier string
}

// Resolver resolves cleaned source strings against the local
// filesystem and the network.
type Resolver struct {
	Files    FileReader
	HTTP     Fetcher
	BasePath string
	// Yarle enables the note-export compatibility path: sources that
	// carry a vendor resource-folder marker are resolved as local
	// files before the generic branch.
	Yarle bool
	Log   *slog.Logger
}

// New returns a Resolver backed by the OS filesystem and an HTTP
// client with the given per-request timeout.
func New(basePath string, yarle bool, fetchTimeout time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		Files:    OSFiles{},
		HTTP:     NewHTTPFetcher(fetchTimeout),
		BasePath: basePath,
		Yarle:    yarle,
		Log:      log,
	}
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func hasYarleMarker(source string) bool {
	return strings.Contains(source, "./_resources/") || strings.Contains(source, ".resources/")
}

// Resolve reads the bytes behind source. It never fails the run: every
// failure path returns a sentinel from apperr for the caller to record.
func (r *Resolver) Resolve(ctx context.Context, source string) (*Source, error) {
	if scanner.IsEmbedded(source) {
		return nil, apperr.ErrAlreadyEmbedded
	}

	if r.Yarle && !isRemote(source) && hasYarleMarker(source) {
		r.Log.Debug("resolving vendor resource path", slog.String("source", source))
		if data, resolved, err := r.readLocal(source); err == nil {
			return &Source{Data: data, Local: true, Identifier: resolved}, nil
		}
		// Fall through to the generic branch with the original token.
	}

	if !isRemote(source) {
		data, resolved, err := r.readLocal(source)
		if err != nil {
			r.Log.Debug("failed to resolve local file", slog.String("source", source))
			return nil, fmt.Errorf("%w: %s", apperr.ErrUnresolvable, source)
		}
		return &Source{Data: data, Local: true, Identifier: resolved}, nil
	}

	data, err := r.HTTP.Get(ctx, source)
	if err != nil {
		r.Log.Warn("failed to download image",
			slog.String("url", source), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnresolvable, source)
	}
	r.Log.Debug("download successful",
		slog.String("url", source), slog.Int("bytes", len(data)))
	return &Source{Data: data, Local: false, Identifier: source}, nil
}

// readLocal tries the path verbatim, then percent-decoded, then joined
// against the base path with any leading "./" stripped. First hit wins.
func (r *Resolver) readLocal(path string) ([]byte, string, error) {
	clean := strings.TrimRight(path, "/\\\"' \t\r\n")

	if data, err := r.Files.ReadFile(clean); err == nil {
		return data, clean, nil
	}

	if decoded, err := url.PathUnescape(clean); err == nil && decoded != clean {
		if data, err := r.Files.ReadFile(decoded); err == nil {
			return data, decoded, nil
		}
	}

	if r.BasePath != "" {
		base := strings.TrimRight(r.BasePath, "/\\\"' \t\r\n")
		rel := strings.TrimPrefix(clean, "./")
		joined := filepath.Join(base, rel)
		if data, err := r.Files.ReadFile(joined); err == nil {
			return data, joined, nil
		}
	}

	return nil, "", fs.ErrNotExist
}

// OSFiles reads through the operating system filesystem.
type OSFiles struct{}

func (OSFiles) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// maxFetchBytes caps a single download; anything bigger can never pass
// the size guard anyway.
const maxFetchBytes = 100 << 20

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a Fetcher with a per-request timeout.
func NewHTTPFetcher(timeout time.Duration) Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}
