// Package cache keeps original wheels between runs so scenarios can skip
// their long from-source builds. The layout is <root>/<policy>/<filename>.
// A cached wheel is trusted on existence alone: nothing validates, expires,
// or prunes entries, because only build outputs that are independent of the
// tool under test are ever stored.
package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Cache is a policy-keyed wheel store rooted at a host directory.
type Cache struct {
	root   string
	logger *slog.Logger
}

// New returns a cache rooted at root. The directory is created lazily on
// the first Store.
func New(root string, logger *slog.Logger) *Cache {
	return &Cache{root: root, logger: logger}
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Restore copies the cached wheel for policy into destDir and reports
// whether it was present. A miss is (false, nil), not an error.
func (c *Cache) Restore(policy, filename, destDir string) (bool, error) {
	src := filepath.Join(c.root, policy, filename)
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat cache entry: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("cache entry %s is not a regular file", src)
	}

	if err := copyFile(src, filepath.Join(destDir, filename)); err != nil {
		return false, fmt.Errorf("restore %s/%s: %w", policy, filename, err)
	}
	c.logger.Info("restored wheel from cache", "policy", policy, "wheel", filename)
	return true, nil
}

// Store copies the wheel at srcPath into the policy's cache directory.
// The copy lands under a temporary name and is renamed into place, so a
// partially written wheel never becomes visible as a cache entry.
func (c *Cache) Store(policy, srcPath string) error {
	dir := filepath.Join(c.root, policy)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	filename := filepath.Base(srcPath)
	tmp, err := os.CreateTemp(dir, filename+".*")
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", policy, filename, err)
	}
	defer os.Remove(tmp.Name())

	src, err := os.Open(srcPath)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("store %s/%s: %w", policy, filename, err)
	}
	defer src.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("store %s/%s: %w", policy, filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store %s/%s: %w", policy, filename, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, filename)); err != nil {
		return fmt.Errorf("store %s/%s: %w", policy, filename, err)
	}
	c.logger.Info("stored wheel in cache", "policy", policy, "wheel", filename)
	return nil
}

// Entry describes one cached wheel.
type Entry struct {
	Policy   string
	Filename string
	Size     int64
}

// Entries lists every cached wheel, sorted by policy then filename. A
// missing cache root yields an empty list.
func (c *Cache) Entries() ([]Entry, error) {
	policies, err := os.ReadDir(c.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache root: %w", err)
	}

	var entries []Entry
	for _, p := range policies {
		if !p.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(c.root, p.Name()))
		if err != nil {
			return nil, fmt.Errorf("read cache dir %s: %w", p.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return nil, fmt.Errorf("stat cache entry %s: %w", f.Name(), err)
			}
			entries = append(entries, Entry{
				Policy:   p.Name(),
				Filename: f.Name(),
				Size:     info.Size(),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Policy != entries[j].Policy {
			return entries[i].Policy < entries[j].Policy
		}
		return entries[i].Filename < entries[j].Filename
	})
	return entries, nil
}

// Clear removes one policy's cache directory, or the whole cache root
// when policy is empty. The next Store recreates whatever it needs.
func (c *Cache) Clear(policy string) error {
	target := c.root
	if policy != "" {
		target = filepath.Join(c.root, policy)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.logger.Info("cleared cache", "path", target)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
