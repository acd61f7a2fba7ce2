package bunny

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StorageClient defines the Bunny Edge Storage operations used by the
// uploader.
type StorageClient interface {
	// UploadFile stores a local file under remotePath in the storage zone
	// and returns the public pull-zone URL.
	UploadFile(ctx context.Context, localPath, remotePath string) (string, error)
}

// StorageOptions configures the Edge Storage client.
type StorageOptions struct {
	// FTPHost is the storage endpoint, defaulting to the global region.
	FTPHost string
	// Zone is the storage zone name, which doubles as the FTP username.
	Zone string
	// Password is the storage zone password.
	Password string
	// PullZoneHost is the public hostname fronting the zone,
	// e.g. "files.example.b-cdn.net".
	PullZoneHost string
	Timeout      time.Duration
}

type storageClient struct {
	opts StorageOptions
}

// NewStorageClient creates a Bunny Edge Storage client.
func NewStorageClient(opts StorageOptions) StorageClient {
	if opts.FTPHost == "" {
		opts.FTPHost = "storage.bunnycdn.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &storageClient{opts: opts}
}

func (c *storageClient) UploadFile(ctx context.Context, localPath, remotePath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrap(err, "bunny: open local file")
	}
	defer file.Close() //nolint:errcheck

	host := c.opts.FTPHost
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	zap.L().Debug("bunny: ftp connecting",
		zap.String("host", host),
		zap.String("remote_path", remotePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(c.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrap(err, "bunny: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(c.opts.Zone, c.opts.Password); err != nil {
		return "", eris.Wrap(err, "bunny: ftp login")
	}

	remotePath = strings.TrimPrefix(remotePath, "/")
	if dir := path.Dir(remotePath); dir != "." {
		// MakeDir fails if the directory exists; Stor is what has to succeed.
		_ = c.makeDirs(conn, dir)
	}

	if err := conn.Stor(remotePath, file); err != nil {
		return "", eris.Wrapf(err, "bunny: ftp store %s", remotePath)
	}

	return c.PublicURL(remotePath), nil
}

func (c *storageClient) makeDirs(conn *ftp.ServerConn, dir string) error {
	var built string
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		built = path.Join(built, part)
		if err := conn.MakeDir(built); err != nil {
			return err
		}
	}
	return nil
}

// PublicURL returns the pull-zone URL serving the given storage path.
func (c *storageClient) PublicURL(remotePath string) string {
	return fmt.Sprintf("https://%s/%s", c.opts.PullZoneHost, strings.TrimPrefix(remotePath, "/"))
}
