// Package tools fetches the dependency-vendoring tool and runs it against a
// source checkout.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kinecosystem/localnet/pkg/archive"
	lerrors "github.com/kinecosystem/localnet/pkg/errors"
	"github.com/kinecosystem/localnet/pkg/executor"
)

const (
	// DefaultGlideVersion is the release the api service's lock file expects.
	DefaultGlideVersion = "v0.13.2"
	// DefaultReleaseURL hosts glide release assets.
	DefaultReleaseURL = "https://github.com/Masterminds/glide/releases/download"
	// BinaryName is the file name of the tool inside the target directory.
	BinaryName = "glide"
)

// ErrUnsupportedOS is matched by every UnsupportedOSError.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// UnsupportedOSError names a host the tool has no release for.
type UnsupportedOSError struct {
	OS string
}

func (e *UnsupportedOSError) Error() string {
	return fmt.Sprintf("%s %q: only linux and darwin are supported", ErrUnsupportedOS, e.OS)
}

func (e *UnsupportedOSError) Is(target error) bool {
	return target == ErrUnsupportedOS
}

// DownloadResult describes the installed binary.
type DownloadResult struct {
	Path    string
	SHA256  string
	Size    int64
	Skipped bool
}

// Downloader installs a glide release binary.
type Downloader struct {
	Version    string
	ReleaseURL string
	Client     *http.Client
	Limits     archive.Limits

	// create opens the archive destination. Nil means os.Create.
	create func(name string) (io.WriteCloser, error)
}

// NewDownloader returns a downloader for version using the public release host.
func NewDownloader(version string) *Downloader {
	if version == "" {
		version = DefaultGlideVersion
	}
	return &Downloader{
		Version:    version,
		ReleaseURL: DefaultReleaseURL,
		Client:     http.DefaultClient,
		Limits:     archive.DefaultLimits(),
	}
}

// Platform returns the release platform for goos, rejecting unsupported hosts.
func Platform(goos, goarch string) (string, error) {
	switch goos {
	case "linux", "darwin":
	default:
		return "", &UnsupportedOSError{OS: goos}
	}
	if goarch == "" {
		goarch = "amd64"
	}
	return goos + "-" + goarch, nil
}

// Download installs the binary as dir/glide unless it is already present.
// The host check happens before any network access.
func (d *Downloader) Download(ctx context.Context, dir, goos, goarch string) (*DownloadResult, error) {
	platform, err := Platform(goos, goarch)
	if err != nil {
		slog.Error("glide_unsupported_os", "os", goos)
		return nil, err
	}
	slog.Info("glide_platform", "platform", platform, "version", d.Version)

	binPath := filepath.Join(dir, BinaryName)
	if info, err := os.Stat(binPath); err == nil && info.Mode().IsRegular() {
		slog.Info("glide_exists", "path", binPath)
		return &DownloadResult{Path: binPath, Size: info.Size(), Skipped: true}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, lerrors.Wrap(err, "create tool directory")
	}

	url := fmt.Sprintf("%s/%s/glide-%s-%s.tar.gz", d.ReleaseURL, d.Version, d.Version, platform)
	tarPath := filepath.Join(dir, "glide.tar.gz")
	defer os.Remove(tarPath)

	sum, size, err := d.fetch(ctx, url, tarPath)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(dir, "glide-extract-*")
	if err != nil {
		return nil, lerrors.Wrap(err, "create scratch directory")
	}
	defer os.RemoveAll(scratch)

	if _, err := archive.ExtractTarGz(tarPath, scratch, d.Limits); err != nil {
		return nil, lerrors.Wrap(err, "extract glide release")
	}

	extracted := filepath.Join(scratch, platform, BinaryName)
	if err := os.Rename(extracted, binPath); err != nil {
		return nil, lerrors.Wrapf(err, "install %s", binPath)
	}
	if err := os.Chmod(binPath, 0755); err != nil {
		return nil, lerrors.Wrap(err, "make glide executable")
	}

	slog.Info("glide_downloaded", "path", binPath, "sha256", sum[:16]+"...", "archive_bytes", size)

	return &DownloadResult{Path: binPath, SHA256: sum, Size: size}, nil
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) (string, int64, error) {
	slog.Info("glide_download_start", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, lerrors.Wrap(err, "build download request")
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("glide_download_failed", "url", url, "error", err)
		return "", 0, lerrors.Wrap(err, "download glide")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("glide_download_failed", "url", url, "status", resp.StatusCode)
		return "", 0, fmt.Errorf("download glide: %s returned %s", url, resp.Status)
	}

	create := d.create
	if create == nil {
		create = func(name string) (io.WriteCloser, error) { return os.Create(name) }
	}
	f, err := create(dest)
	if err != nil {
		return "", 0, lerrors.Wrap(err, "create archive file")
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), resp.Body)
	if err != nil {
		f.Close()
		return "", 0, lerrors.Wrap(err, "write archive file")
	}
	if err := f.Close(); err != nil {
		return "", 0, lerrors.Wrap(err, "close archive file")
	}

	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// Vendor installs glide into dir if needed and runs `glide install` there.
func Vendor(ctx context.Context, runner executor.Runner, d *Downloader, dir, goos, goarch string) error {
	if _, err := d.Download(ctx, dir, goos, goarch); err != nil {
		return lerrors.Wrap(err, "fetch vendoring tool")
	}

	slog.Info("vendor_start", "dir", dir)
	if _, err := runner.Run(ctx, executor.Command{
		Args: []string{"./" + BinaryName, "install"},
		Dir:  dir,
		Mode: executor.HideStderr,
	}); err != nil {
		return lerrors.Wrap(err, "vendor dependencies")
	}
	slog.Info("vendor_complete", "dir", dir)
	return nil
}
