package transport

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPConfig configures an FTP storage back-end.
type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Root     string
	Timeout  time.Duration
}

// FTPStorage implements Storage over a plain FTP connection.
type FTPStorage struct {
	conn *ftp.ServerConn
	root string
}

// NewFTPStorage dials and authenticates an FTP session.
func NewFTPStorage(cfg FTPConfig) (*FTPStorage, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	conn, err := ftp.Dial(cfg.Addr, ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("transport: ftp: dial %s: %w", cfg.Addr, err)
	}
	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("transport: ftp: login: %w", err)
	}
	return &FTPStorage{conn: conn, root: cfg.Root}, nil
}

func (f *FTPStorage) resolve(name string) string {
	return path.Join(f.root, path.Clean("/"+name))
}

func (f *FTPStorage) mkdirAll(dir string) {
	if dir == "" || dir == "." || dir == "/" {
		return
	}
	parent := path.Dir(dir)
	f.mkdirAll(parent)
	_ = f.conn.MakeDir(dir) // ignore "already exists"
}

func (f *FTPStorage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	full := f.resolve(name)
	f.mkdirAll(path.Dir(full))
	return &ftpWriteCloser{conn: f.conn, name: full}, nil
}

func (f *FTPStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	resp, err := f.conn.Retr(f.resolve(name))
	if err != nil {
		if isFTPNotExist(err) {
			return nil, fmt.Errorf("transport: ftp: open %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("transport: ftp: open %s: %w", name, err)
	}
	return resp, nil
}

func (f *FTPStorage) List(_ context.Context, dir string) ([]ObjectInfo, error) {
	entries, err := f.conn.List(f.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("transport: ftp: list %s: %w", dir, err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ObjectInfo{
			Name:  e.Name,
			Size:  int64(e.Size),
			IsDir: e.Type == ftp.EntryTypeFolder,
		})
	}
	return out, nil
}

func (f *FTPStorage) Remove(_ context.Context, name string) error {
	if err := f.conn.Delete(f.resolve(name)); err != nil && !isFTPNotExist(err) {
		return fmt.Errorf("transport: ftp: remove %s: %w", name, err)
	}
	return nil
}

func (f *FTPStorage) Rename(_ context.Context, oldName, newName string) error {
	newFull := f.resolve(newName)
	f.mkdirAll(path.Dir(newFull))
	if err := f.conn.Rename(f.resolve(oldName), newFull); err != nil {
		return fmt.Errorf("transport: ftp: rename %s -> %s: %w", oldName, newName, err)
	}
	return nil
}

func (f *FTPStorage) Close() error {
	return f.conn.Quit()
}

func isFTPNotExist(err error) bool {
	return strings.Contains(err.Error(), "550")
}

// ftpWriteCloser buffers nothing itself — it streams via a pipe so
// Stor can run concurrently with the caller's Write calls, matching
// the jlaffaye/ftp client's io.Reader-based upload API.
type ftpWriteCloser struct {
	conn    *ftp.ServerConn
	name    string
	pw      *io.PipeWriter
	pr      *io.PipeReader
	started bool
	errCh   chan error
}

func (w *ftpWriteCloser) ensureStarted() {
	if w.started {
		return
	}
	w.pr, w.pw = io.Pipe()
	w.errCh = make(chan error, 1)
	go func() {
		w.errCh <- w.conn.Stor(w.name, w.pr)
	}()
	w.started = true
}

func (w *ftpWriteCloser) Write(p []byte) (int, error) {
	w.ensureStarted()
	return w.pw.Write(p)
}

func (w *ftpWriteCloser) Close() error {
	w.ensureStarted()
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.errCh
}
