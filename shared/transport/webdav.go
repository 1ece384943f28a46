package transport

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// WebDAVConfig configures a WebDAV storage back-end. No WebDAV client
// library appears anywhere in the example corpus (golang.org/x/net/webdav
// is a server, not a client — see DESIGN.md), so this speaks the
// protocol's PROPFIND/PUT/GET/DELETE/MOVE verbs directly over net/http.
type WebDAVConfig struct {
	BaseURL  string
	User     string
	Password string
}

// WebDAVStorage implements Storage against a WebDAV collection.
type WebDAVStorage struct {
	base   *url.URL
	user   string
	pass   string
	client *http.Client
}

// NewWebDAVStorage builds a client against the given WebDAV collection URL.
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: webdav: parse base url: %w", err)
	}
	return &WebDAVStorage{base: u, user: cfg.User, pass: cfg.Password, client: &http.Client{}}, nil
}

func (w *WebDAVStorage) resolve(name string) *url.URL {
	u := *w.base
	u.Path = path.Join(u.Path, path.Clean("/"+name))
	return &u
}

func (w *WebDAVStorage) newRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if w.user != "" {
		req.SetBasicAuth(w.user, w.pass)
	}
	return req, nil
}

func (w *WebDAVStorage) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	req, err := w.newRequest(ctx, http.MethodPut, w.resolve(name), pr)
	if err != nil {
		return nil, fmt.Errorf("transport: webdav: build PUT: %w", err)
	}
	errCh := make(chan error, 1)
	go func() {
		resp, err := w.client.Do(req)
		if err != nil {
			errCh <- fmt.Errorf("transport: webdav: PUT %s: %w", name, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errCh <- fmt.Errorf("transport: webdav: PUT %s: status %s", name, resp.Status)
			return
		}
		errCh <- nil
	}()
	return &webdavWriteCloser{pw: pw, errCh: errCh}, nil
}

func (w *WebDAVStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := w.newRequest(ctx, http.MethodGet, w.resolve(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: webdav: GET %s: %w", name, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("transport: webdav: GET %s: %w", name, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("transport: webdav: GET %s: status %s", name, resp.Status)
	}
	return resp.Body, nil
}

// davMultistatus is the minimal subset of a PROPFIND multistatus
// response this client reads.
type davMultistatus struct {
	Responses []struct {
		Href     string `xml:"href"`
		Propstat struct {
			Prop struct {
				ContentLength int64  `xml:"getcontentlength"`
				ResourceType  struct {
					Collection *struct{} `xml:"collection"`
				} `xml:"resourcetype"`
			} `xml:"prop"`
		} `xml:"propstat"`
	} `xml:"response"`
}

func (w *WebDAVStorage) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	body := strings.NewReader(`<?xml version="1.0"?><propfind xmlns="DAV:"><allprop/></propfind>`)
	req, err := w.newRequest(ctx, "PROPFIND", w.resolve(dir), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml")
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: webdav: PROPFIND %s: %w", dir, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("transport: webdav: PROPFIND %s: %w", dir, ErrNotFound)
	}

	var ms davMultistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("transport: webdav: decode PROPFIND response: %w", err)
	}

	out := make([]ObjectInfo, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		name := path.Base(strings.TrimSuffix(r.Href, "/"))
		out = append(out, ObjectInfo{
			Name:  name,
			Size:  r.Propstat.Prop.ContentLength,
			IsDir: r.Propstat.Prop.ResourceType.Collection != nil,
		})
	}
	return out, nil
}

func (w *WebDAVStorage) Remove(ctx context.Context, name string) error {
	req, err := w.newRequest(ctx, http.MethodDelete, w.resolve(name), nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: webdav: DELETE %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("transport: webdav: DELETE %s: status %s", name, resp.Status)
	}
	return nil
}

func (w *WebDAVStorage) Rename(ctx context.Context, oldName, newName string) error {
	req, err := w.newRequest(ctx, "MOVE", w.resolve(oldName), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Destination", w.resolve(newName).String())
	req.Header.Set("Overwrite", "T")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: webdav: MOVE %s -> %s: %w", oldName, newName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: webdav: MOVE %s -> %s: status %s", oldName, newName, resp.Status)
	}
	return nil
}

func (w *WebDAVStorage) Close() error { return nil }

type webdavWriteCloser struct {
	pw    *io.PipeWriter
	errCh chan error
}

func (w *webdavWriteCloser) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *webdavWriteCloser) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.errCh
}
