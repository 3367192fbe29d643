// Package static serves files from a directory, such as the static part of a
// serverless build output.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/fetchbridge/pkg/debug"
	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// DefaultIndex is served for directory requests.
const DefaultIndex = "index.html"

// Handler serves files below a root directory. Path traversal outside the
// root is rejected by os.Root.
type Handler struct {
	root  *os.Root
	index string
}

// New opens dir and returns a handler serving it. An empty index uses
// DefaultIndex.
func New(dir, index string) (*Handler, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening static root: %w", err)
	}
	if index == "" {
		index = DefaultIndex
	}
	return &Handler{root: root, index: index}, nil
}

// Close releases the root directory.
func (h *Handler) Close() error {
	return h.root.Close()
}

// Handle implements transport.Handler.
func (h *Handler) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	method := req.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return transport.NewAPIErrorResponse(&transport.APIError{
			Type:    transport.ErrorTypeMethodNotAllowed,
			Message: "method not allowed",
		}).WithHeader("allow", "GET, HEAD"), nil
	}

	name := cleanPath(req.URL().Path)
	f, info, err := h.open(name)
	if err != nil {
		if isNotFound(err) {
			debug.Log("static", "file not found", "path", name, "error", err)
			return notFound(), nil
		}
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	modTime := info.ModTime().UTC().Truncate(time.Second)
	headers := fetch.NewHeaders(
		"content-type", contentType(info.Name()),
		"content-length", strconv.FormatInt(info.Size(), 10),
		"last-modified", modTime.Format(http.TimeFormat),
	)

	if notModified(req, modTime) {
		f.Close()
		return fetch.NewResponse(nil, fetch.ResponseInit{
			Status:  http.StatusNotModified,
			Headers: headers.Without("content-length"),
		})
	}

	var body io.Reader
	if method == http.MethodGet {
		body = &ctxReader{ctx: ctx, f: f}
	} else {
		f.Close()
	}
	return fetch.NewResponse(body, fetch.ResponseInit{Status: http.StatusOK, Headers: headers})
}

// open opens name, descending into the index file for directories.
func (h *Handler) open(name string) (*os.File, os.FileInfo, error) {
	f, err := h.root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.IsDir() {
		return f, info, nil
	}
	f.Close()

	index := path.Join(name, h.index)
	f, err = h.root.Open(index)
	if err != nil {
		return nil, nil, err
	}
	info, err = f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

// cleanPath turns a URL path into a root-relative file name.
func cleanPath(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return "."
	}
	return p[1:]
}

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.ENOTDIR)
}

func notModified(req *fetch.Request, modTime time.Time) bool {
	v, ok := req.Headers().First("if-modified-since")
	if !ok {
		return false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return false
	}
	return !modTime.After(t)
}

func notFound() *fetch.Response {
	return transport.NewAPIErrorResponse(&transport.APIError{
		Type:    transport.ErrorTypeNotFound,
		Message: "not found",
	})
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	f   *os.File
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, context.Cause(r.ctx)
	}
	return r.f.Read(p)
}

func (r *ctxReader) Close() error {
	return r.f.Close()
}
