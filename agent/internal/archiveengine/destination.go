// Package archiveengine drives a backup job directly against
// shared/archive + shared/codec + shared/transport instead of
// shelling out to a restic/rclone subprocess. Its method surface
// (Backup/Forget/Check/Snapshots/Restore) mirrors the shape of
// agent/internal/restic.Wrapper, the teacher's subprocess-driving
// equivalent, so the executor's call sites change only in which
// package they import.
package archiveengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arkeep-io/arkeep/shared/bandwidth"
	"github.com/arkeep-io/arkeep/shared/transport"
)

// DestinationType identifies the storage backend for a destination,
// matching the db.Destination.Type field on the server.
type DestinationType string

const (
	DestLocal  DestinationType = "local"
	DestFTP    DestinationType = "ftp"
	DestSFTP   DestinationType = "sftp"
	DestWebDAV DestinationType = "webdav"
)

// Destination describes a single backup target. Credentials and
// Config arrive already JSON-decoded from the server's encrypted
// db.Destination columns — archiveengine works with plaintext values.
type Destination struct {
	Type DestinationType
	// RepoURL is a local filesystem path for DestLocal, or the base
	// URL/host:port for the network backends (see ResolveStorage).
	RepoURL string
	// Password is the archive's symmetric encryption passphrase — kept
	// as a distinct field from Config since it is handled as a secret
	// end to end (server's EncryptedString column, never logged).
	Password string
	// Config carries backend-specific connection fields as JSON: the
	// FTP/SFTP/WebDAV user/port/private-key set that doesn't fit a bare
	// URL. Empty for DestLocal.
	Config string
	// Env holds extra environment-style key/value overrides (e.g. an
	// SSH_PRIVATE_KEY payload) that Config alone doesn't carry.
	Env map[string]string
	// Bandwidth, if non-empty, throttles every Create/Open stream
	// against this destination through shared/bandwidth's token
	// bucket. Nil or empty means unlimited.
	Bandwidth []bandwidth.Node
}

type ftpConfig struct {
	User string `json:"user"`
	Pass string `json:"pass"`
	Root string `json:"root"`
}

type sftpConfig struct {
	User       string `json:"user"`
	Pass       string `json:"pass"`
	PrivateKey string `json:"private_key"`
	Root       string `json:"root"`
}

type webdavConfig struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// ResolveStorage opens the transport.Storage backend named by dest,
// wrapped with bandwidth shaping when dest.Bandwidth is set. Callers
// are responsible for calling Close on the returned Storage.
func ResolveStorage(ctx context.Context, dest Destination) (transport.Storage, error) {
	storage, err := resolveBackend(ctx, dest)
	if err != nil {
		return nil, err
	}
	if len(dest.Bandwidth) == 0 {
		return storage, nil
	}
	return transport.NewShapedStorage(storage, bandwidth.NewList(dest.Bandwidth...)), nil
}

// resolveBackend opens the unshaped transport.Storage backend named
// by dest.Type.
func resolveBackend(ctx context.Context, dest Destination) (transport.Storage, error) {
	switch dest.Type {
	case DestLocal, "":
		return transport.NewFileStorage(dest.RepoURL)

	case DestFTP:
		var cfg ftpConfig
		if dest.Config != "" {
			if err := json.Unmarshal([]byte(dest.Config), &cfg); err != nil {
				return nil, fmt.Errorf("archiveengine: decode ftp config: %w", err)
			}
		}
		return transport.NewFTPStorage(transport.FTPConfig{
			Addr:     dest.RepoURL,
			User:     cfg.User,
			Password: cfg.Pass,
			Root:     cfg.Root,
		})

	case DestSFTP:
		var cfg sftpConfig
		if dest.Config != "" {
			if err := json.Unmarshal([]byte(dest.Config), &cfg); err != nil {
				return nil, fmt.Errorf("archiveengine: decode sftp config: %w", err)
			}
		}
		privateKey := []byte(cfg.PrivateKey)
		if key, ok := dest.Env["SSH_PRIVATE_KEY"]; ok && len(privateKey) == 0 {
			privateKey = []byte(key)
		}
		return transport.NewSFTPStorage(transport.SFTPConfig{
			Addr:       dest.RepoURL,
			User:       cfg.User,
			Password:   cfg.Pass,
			PrivateKey: privateKey,
			Root:       cfg.Root,
		})

	case DestWebDAV:
		var cfg webdavConfig
		if dest.Config != "" {
			if err := json.Unmarshal([]byte(dest.Config), &cfg); err != nil {
				return nil, fmt.Errorf("archiveengine: decode webdav config: %w", err)
			}
		}
		return transport.NewWebDAVStorage(transport.WebDAVConfig{
			BaseURL:  dest.RepoURL,
			User:     cfg.User,
			Password: cfg.Pass,
		})

	default:
		return nil, fmt.Errorf("archiveengine: unknown destination type %q", dest.Type)
	}
}

// volumeNamer returns the VolumeNamer for jobID: "<jobID>-part001.bar",
// "<jobID>-part002.bar", and so on.
func volumeNamer(jobID string) func(index int) string {
	return func(index int) string {
		return fmt.Sprintf("%s-part%03d.bar", jobID, index+1)
	}
}
