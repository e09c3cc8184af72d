package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/wheelwright/internal/docker"
)

// Detail is the structured summary a run leaves behind: wheel names,
// platform tags, and counts, all rendered as strings.
type Detail map[string]string

// MarshalDetail renders d as canonical JSON: keys sorted, every string
// NFC normalized, HTML escaping disabled. Two runs that observed the same
// facts journal byte-identical detail rows.
func MarshalDetail(d Detail) ([]byte, error) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeString(k)
		if err != nil {
			return nil, fmt.Errorf("detail key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeString(d[k])
		if err != nil {
			return nil, fmt.Errorf("detail value for %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalCommand renders a typed command descriptor as canonical JSON.
// Keys emit in sorted order and zero-valued fields are omitted, so the
// same command always journals the same bytes.
func MarshalCommand(cmd docker.Command) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	key := func(k string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		// Keys here are fixed ASCII identifiers; encodeString cannot fail.
		kb, _ := encodeString(k)
		buf.Write(kb)
		buf.WriteByte(':')
	}

	if len(cmd.Argv) > 0 {
		key("argv")
		buf.WriteByte('[')
		for i, arg := range cmd.Argv {
			if i > 0 {
				buf.WriteByte(',')
			}
			ab, err := encodeString(arg)
			if err != nil {
				return nil, fmt.Errorf("argv[%d]: %w", i, err)
			}
			buf.Write(ab)
		}
		buf.WriteByte(']')
	}
	if cmd.Dir != "" {
		key("dir")
		db, err := encodeString(cmd.Dir)
		if err != nil {
			return nil, fmt.Errorf("dir: %w", err)
		}
		buf.Write(db)
	}
	if len(cmd.Env) > 0 {
		key("env")
		eb, err := MarshalDetail(Detail(cmd.Env))
		if err != nil {
			return nil, fmt.Errorf("env: %w", err)
		}
		buf.Write(eb)
	}
	if cmd.Shell != "" {
		key("shell")
		sb, err := encodeString(cmd.Shell)
		if err != nil {
			return nil, fmt.Errorf("shell: %w", err)
		}
		buf.Write(sb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalDetail parses a detail row written by MarshalDetail.
func UnmarshalDetail(data []byte) (Detail, error) {
	var d Detail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse detail: %w", err)
	}
	return d, nil
}

// encodeString produces a JSON string with NFC normalization applied at
// the serialization boundary and without HTML escaping, so "<", ">", and
// "&" survive untouched.
func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}
