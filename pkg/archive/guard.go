package archive

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Limits bounds what an archive may unpack to.
type Limits struct {
	MaxFileSize         int64
	MaxTotalSize        int64
	MaxCompressionRatio float64
}

// DefaultLimits fit a single release tarball of a command-line tool.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:         256 * 1024 * 1024,
		MaxTotalSize:        512 * 1024 * 1024,
		MaxCompressionRatio: 100,
	}
}

// guard tracks one extraction against Limits.
type guard struct {
	limits Limits
	total  int64
}

func (g *guard) checkPath(name string) error {
	if filepath.IsAbs(name) {
		slog.Error("archive_entry_rejected", "path", name, "reason", "absolute_path")
		return fmt.Errorf("archive: absolute path not allowed: %s", name)
	}
	if clean := filepath.Clean(name); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		slog.Error("archive_entry_rejected", "path", name, "reason", "path_traversal")
		return fmt.Errorf("archive: path traversal detected: %s", name)
	}
	return nil
}

// checkLink rejects relative link targets that resolve above the archive root.
func (g *guard) checkLink(name, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("archive: absolute link target not allowed: %s -> %s", name, target)
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(name), target))
	if resolved == ".." || strings.HasPrefix(resolved, ".."+string(filepath.Separator)) {
		slog.Error("archive_entry_rejected", "path", name, "target", target, "reason", "link_escape")
		return fmt.Errorf("archive: link %s -> %s escapes the archive root", name, target)
	}
	return nil
}

func (g *guard) add(size int64) error {
	if g.limits.MaxFileSize > 0 && size > g.limits.MaxFileSize {
		return fmt.Errorf("archive: entry size %d exceeds max %d", size, g.limits.MaxFileSize)
	}
	g.total += size
	if g.limits.MaxTotalSize > 0 && g.total > g.limits.MaxTotalSize {
		return fmt.Errorf("archive: total size %d exceeds max %d", g.total, g.limits.MaxTotalSize)
	}
	return nil
}

func (g *guard) checkRatio(compressed int64) error {
	if g.limits.MaxCompressionRatio <= 0 || g.total == 0 {
		return nil
	}
	if compressed <= 0 {
		return fmt.Errorf("archive: compressed size cannot be zero")
	}
	ratio := float64(g.total) / float64(compressed)
	if ratio > g.limits.MaxCompressionRatio {
		slog.Error("archive_compression_bomb", "ratio", ratio, "max_ratio", g.limits.MaxCompressionRatio)
		return fmt.Errorf("archive: compression ratio %.2f exceeds max %.2f", ratio, g.limits.MaxCompressionRatio)
	}
	return nil
}
