package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const (
	scpDialTimeout   = 15 * time.Second
	scpUploadRetries = 3
	scpRetryDelay    = 5 * time.Second
)

// SCPBackend uploads archived artifacts over SFTP, grounded on the
// original SCPStorage's connect-upload-close-per-attempt retry loop and
// remote find-based cleanup.
type SCPBackend struct {
	host       string
	port       int
	username   string
	password   string
	privateKey string
	baseURL    string
	log        zerolog.Logger
}

// NewSCPBackend creates an SCP archive backend. privateKeyPath may be empty
// to fall back to password auth.
func NewSCPBackend(host string, port int, username, password, privateKeyPath, baseURL string, log zerolog.Logger) *SCPBackend {
	return &SCPBackend{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		privateKey: privateKeyPath,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log.With().Str("component", "scp-archive").Logger(),
	}
}

func (b *SCPBackend) Name() string { return "scp" }

func (b *SCPBackend) UploadFile(ctx context.Context, src, dst, partition string) (string, bool) {
	data, err := readFile(src)
	if err != nil {
		b.log.Error().Err(err).Str("src", src).Msg("scp archive: read source failed")
		return "", false
	}
	remotePath := path.Join(partition, dst)

	var lastErr error
	for attempt := 1; attempt <= scpUploadRetries; attempt++ {
		if err := b.upload(ctx, remotePath, data); err != nil {
			lastErr = err
			b.log.Warn().Err(err).Int("attempt", attempt).Msg("scp archive: upload attempt failed")
			if attempt < scpUploadRetries {
				time.Sleep(scpRetryDelay)
			}
			continue
		}
		return b.baseURL + "/" + path.Join(partition, url.PathEscape(dst)), true
	}
	b.log.Error().Err(lastErr).Int("attempts", scpUploadRetries).Msg("scp archive: all upload attempts failed")
	return "", false
}

func (b *SCPBackend) upload(ctx context.Context, remotePath string, data []byte) error {
	client, sess, err := b.dial(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	defer client.Close()

	dir := path.Dir(remotePath)
	if err := ensureRemoteDir(sess, dir); err != nil {
		return fmt.Errorf("ensure remote dir: %w", err)
	}

	dest, err := sess.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	defer dest.Close()

	if _, err := dest.Write(data); err != nil {
		return fmt.Errorf("write remote file: %w", err)
	}
	return nil
}

func (b *SCPBackend) CleanFiles(ctx context.Context, root string, days int) (int, bool) {
	client, err := b.dialSSH()
	if err != nil {
		b.log.Error().Err(err).Msg("scp archive: cleanup connect failed")
		return 0, false
	}
	defer client.Close()

	findFiles := fmt.Sprintf("find %s -type f -mtime +%d -print -delete", root, days)
	out, err := runRemote(client, findFiles)
	if err != nil {
		b.log.Error().Err(err).Msg("scp archive: file cleanup command failed")
		return 0, false
	}
	removed := len(strings.Fields(strings.TrimSpace(out)))

	findDirs := fmt.Sprintf("find %s -type d -empty -delete", root)
	if _, err := runRemote(client, findDirs); err != nil {
		b.log.Error().Err(err).Msg("scp archive: directory cleanup command failed")
	}

	return removed, true
}

func (b *SCPBackend) dial(ctx context.Context) (*ssh.Client, *sftp.Client, error) {
	client, err := b.dialSSH()
	if err != nil {
		return nil, nil, err
	}
	sess, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, sess, nil
}

func (b *SCPBackend) dialSSH() (*ssh.Client, error) {
	auth, err := b.authMethods()
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            b.username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         scpDialTimeout,
	}
	addr := fmt.Sprintf("%s:%d", b.host, b.port)
	return ssh.Dial("tcp", addr, cfg)
}

func (b *SCPBackend) authMethods() ([]ssh.AuthMethod, error) {
	if b.privateKey != "" {
		keyData, err := os.ReadFile(b.privateKey)
		if err == nil {
			signer, err := ssh.ParsePrivateKey(keyData)
			if err == nil {
				return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
			}
			b.log.Error().Err(err).Msg("scp archive: failed to parse private key, falling back to password")
		}
	}
	if b.password != "" {
		return []ssh.AuthMethod{ssh.Password(b.password)}, nil
	}
	return nil, fmt.Errorf("no valid authentication method configured")
}

// ensureRemoteDir creates the remote directory tree one segment at a time,
// matching the original's incremental mkdir-if-missing walk.
func ensureRemoteDir(sess *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		current += "/" + part
		if _, err := sess.Stat(current); err != nil {
			if err := sess.Mkdir(current); err != nil {
				if _, statErr := sess.Stat(current); statErr != nil {
					return err
				}
			}
		}
	}
	return nil
}

func runRemote(client *ssh.Client, cmd string) (string, error) {
	sess, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if err := sess.Run(cmd); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}
