// Package inspect reads repaired wheels on the host side. A wheel is a
// zip archive; inspection never extracts it to disk, members are read in
// memory. The ELF helpers answer exactly one question the container side
// cannot: what DT_RPATH entries a grafted library carries.
package inspect

import (
	"archive/zip"
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"sort"
)

// Wheel is an opened wheel archive.
type Wheel struct {
	path string
	zr   *zip.ReadCloser
}

// Open opens the wheel at path for inspection. The caller owns Close.
func Open(path string) (*Wheel, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open wheel %s: %w", path, err)
	}
	return &Wheel{path: path, zr: zr}, nil
}

// Close releases the underlying archive.
func (w *Wheel) Close() error {
	return w.zr.Close()
}

// Members returns every member name in the archive, sorted.
func (w *Wheel) Members() []string {
	names := make([]string, 0, len(w.zr.File))
	for _, f := range w.zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Read returns the full contents of the named member.
func (w *Wheel) Read(member string) ([]byte, error) {
	for _, f := range w.zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %s: %w", member, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read member %s: %w", member, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("wheel %s has no member %s", w.path, member)
}

// DynRPaths parses the named member as an ELF object and returns the
// string value of each DT_RPATH entry in its dynamic section, one per
// entry in section order. A member with no dynamic section yields none.
func (w *Wheel) DynRPaths(member string) ([]string, error) {
	data, err := w.Read(member)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s as ELF: %w", member, err)
	}
	rpaths, err := f.DynString(elf.DT_RPATH)
	if err != nil {
		return nil, fmt.Errorf("read DT_RPATH of %s: %w", member, err)
	}
	return rpaths, nil
}
