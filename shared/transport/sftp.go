package transport

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig configures an SFTP storage back-end.
type SFTPConfig struct {
	Addr       string // host:port
	User       string
	Password   string // used when no PrivateKey is supplied
	PrivateKey []byte // PEM-encoded
	Root       string
	// HostKeyCallback overrides the default ssh.InsecureIgnoreHostKey;
	// production deployments should supply a fingerprint-pinned callback.
	HostKeyCallback ssh.HostKeyCallback
}

// SFTPStorage implements Storage over an SSH/SFTP connection.
type SFTPStorage struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	root       string
}

// NewSFTPStorage dials and authenticates an SFTP session.
func NewSFTPStorage(cfg SFTPConfig) (*SFTPStorage, error) {
	auth := []ssh.AuthMethod{}
	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("transport: sftp: parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKeyCallback := cfg.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	sshClient, err := ssh.Dial("tcp", cfg.Addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: sftp: dial %s: %w", cfg.Addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("transport: sftp: new client: %w", err)
	}

	return &SFTPStorage{sshClient: sshClient, sftpClient: sftpClient, root: cfg.Root}, nil
}

func (s *SFTPStorage) resolve(name string) string {
	return path.Join(s.root, path.Clean("/"+name))
}

func (s *SFTPStorage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	full := s.resolve(name)
	if err := s.sftpClient.MkdirAll(path.Dir(full)); err != nil {
		return nil, fmt.Errorf("transport: sftp: mkdir: %w", err)
	}
	f, err := s.sftpClient.Create(full)
	if err != nil {
		return nil, fmt.Errorf("transport: sftp: create %s: %w", name, err)
	}
	return f, nil
}

func (s *SFTPStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.sftpClient.Open(s.resolve(name))
	if err != nil {
		if isSFTPNotExist(err) {
			return nil, fmt.Errorf("transport: sftp: open %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("transport: sftp: open %s: %w", name, err)
	}
	return f, nil
}

func (s *SFTPStorage) List(_ context.Context, dir string) ([]ObjectInfo, error) {
	entries, err := s.sftpClient.ReadDir(s.resolve(dir))
	if err != nil {
		if isSFTPNotExist(err) {
			return nil, fmt.Errorf("transport: sftp: list %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("transport: sftp: list %s: %w", dir, err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ObjectInfo{Name: e.Name(), Size: e.Size(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (s *SFTPStorage) Remove(_ context.Context, name string) error {
	if err := s.sftpClient.Remove(s.resolve(name)); err != nil && !isSFTPNotExist(err) {
		return fmt.Errorf("transport: sftp: remove %s: %w", name, err)
	}
	return nil
}

func (s *SFTPStorage) Rename(_ context.Context, oldName, newName string) error {
	newFull := s.resolve(newName)
	if err := s.sftpClient.MkdirAll(path.Dir(newFull)); err != nil {
		return fmt.Errorf("transport: sftp: mkdir: %w", err)
	}
	if err := s.sftpClient.PosixRename(s.resolve(oldName), newFull); err != nil {
		return fmt.Errorf("transport: sftp: rename %s -> %s: %w", oldName, newName, err)
	}
	return nil
}

func (s *SFTPStorage) Close() error {
	s.sftpClient.Close()
	return s.sshClient.Close()
}

func isSFTPNotExist(err error) bool {
	se, ok := err.(*sftp.StatusError)
	return ok && se.Code() == 2 // SSH_FX_NO_SUCH_FILE
}
