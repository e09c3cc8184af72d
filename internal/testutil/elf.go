package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"testing"
)

// SharedObject builds a minimal 64-bit little-endian ELF whose dynamic
// section carries one DT_RPATH entry per given path. The layout is a null
// section, .dynstr, .dynamic, and .shstrtab, which is everything
// debug/elf needs to walk the dynamic section.
func SharedObject(t *testing.T, rpaths ...string) []byte {
	t.Helper()

	// .dynstr: leading NUL, then each rpath NUL-terminated.
	dynstr := []byte{0}
	offsets := make([]uint64, len(rpaths))
	for i, p := range rpaths {
		offsets[i] = uint64(len(dynstr))
		dynstr = append(dynstr, p...)
		dynstr = append(dynstr, 0)
	}

	// .dynamic: one DT_RPATH tag per path, then DT_NULL.
	var dynamic bytes.Buffer
	mustWrite := func(v any) {
		if err := binary.Write(&dynamic, binary.LittleEndian, v); err != nil {
			t.Fatalf("write dynamic entry: %v", err)
		}
	}
	for _, off := range offsets {
		mustWrite(uint64(15)) // DT_RPATH
		mustWrite(off)
	}
	mustWrite(uint64(0)) // DT_NULL
	mustWrite(uint64(0))

	shstrtab := []byte("\x00.dynstr\x00.dynamic\x00.shstrtab\x00")

	const ehsize = 64
	align := func(n int) int { return (n + 7) &^ 7 }
	dynstrOff := ehsize
	dynamicOff := align(dynstrOff + len(dynstr))
	shstrtabOff := dynamicOff + dynamic.Len()
	shoff := align(shstrtabOff + len(shstrtab))

	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write ELF field: %v", err)
		}
	}

	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	w(uint16(3))  // e_type: ET_DYN
	w(uint16(62)) // e_machine: EM_X86_64
	w(uint32(1))  // e_version
	w(uint64(0))  // e_entry
	w(uint64(0))  // e_phoff
	w(uint64(shoff))
	w(uint32(0))      // e_flags
	w(uint16(ehsize)) // e_ehsize
	w(uint16(0))      // e_phentsize
	w(uint16(0))      // e_phnum
	w(uint16(64))     // e_shentsize
	w(uint16(4))      // e_shnum
	w(uint16(3))      // e_shstrndx

	pad := func(to int) {
		for buf.Len() < to {
			buf.WriteByte(0)
		}
	}
	pad(dynstrOff)
	buf.Write(dynstr)
	pad(dynamicOff)
	buf.Write(dynamic.Bytes())
	pad(shstrtabOff)
	buf.Write(shstrtab)
	pad(shoff)

	type shdr struct {
		name, typ              uint32
		flags, addr, off, size uint64
		link, info             uint32
		addralign, entsize     uint64
	}
	sections := []shdr{
		{},
		{name: 1, typ: 3, off: uint64(dynstrOff), size: uint64(len(dynstr)), addralign: 1},                          // .dynstr
		{name: 9, typ: 6, off: uint64(dynamicOff), size: uint64(dynamic.Len()), link: 1, addralign: 8, entsize: 16}, // .dynamic
		{name: 18, typ: 3, off: uint64(shstrtabOff), size: uint64(len(shstrtab)), addralign: 1},                     // .shstrtab
	}
	for _, s := range sections {
		w(s.name)
		w(s.typ)
		w(s.flags)
		w(s.addr)
		w(s.off)
		w(s.size)
		w(s.link)
		w(s.info)
		w(s.addralign)
		w(s.entsize)
	}
	return buf.Bytes()
}

// WheelArchive builds a zip archive in memory with the given members.
func WheelArchive(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		mw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member %s: %v", name, err)
		}
		if _, err := mw.Write(data); err != nil {
			t.Fatalf("write member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// WriteWheel writes a zip archive with the given members to path.
func WriteWheel(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	if err := os.WriteFile(path, WheelArchive(t, members), 0o644); err != nil {
		t.Fatalf("write wheel %s: %v", path, err)
	}
}
