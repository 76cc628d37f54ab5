// Package dotenv implements line-preserving .env file parsing and editing:
// read a file, look up or set individual keys, and write back out with every
// comment, blank line, and untouched assignment byte-identical to the
// original — only the edited lines change.
package dotenv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RawLine is one physical line of a .env file: its text (without the
// trailing newline) and the exact newline sequence that followed it, so a
// round trip through Parse/Bytes reproduces the file byte-for-byte.
type RawLine struct {
	Text string
	NL   string // "\n", "\r\n", or "" for a final line with no trailing newline
}

// File is a parsed .env document: every line kept in its original form,
// whether or not it's a recognized KEY=VALUE assignment.
type File struct {
	Lines []RawLine
}

// Parse splits data into RawLines without otherwise interpreting it.
func Parse(data []byte) File {
	return File{Lines: splitRawLines(data)}
}

// ReadFile reads and parses path.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data), nil
}

// Bytes re-serializes f back to its original byte form (or the edited form,
// after a Set/Delete call).
func (f File) Bytes() []byte {
	var buf bytes.Buffer
	for _, line := range f.Lines {
		buf.WriteString(line.Text)
		buf.WriteString(line.NL)
	}
	return buf.Bytes()
}

// Lookup returns the normalized value of the last assignment to key, or
// ok=false if key is never assigned.
func (f File) Lookup(key string) (value string, ok bool) {
	for _, line := range f.Lines {
		assign, isAssign := parseAssignment(line.Text)
		if !isAssign || assign.Key != key {
			continue
		}
		normalized, err := NormalizeValue(assign.ValueRaw)
		if err != nil {
			continue
		}
		value, ok = normalized, true
	}
	return value, ok
}

// Set replaces the last existing assignment to key with key=value, or
// appends a new "key=value" line if key is never assigned. Reports whether
// the file's contents actually changed.
func (f *File) Set(key, value string) (changed bool, err error) {
	if err := ValidateKeyName(key); err != nil {
		return false, err
	}
	last := -1
	for i, line := range f.Lines {
		assign, ok := parseAssignment(line.Text)
		if ok && assign.Key == key {
			last = i
		}
	}
	newText := key + "=" + quoteIfNeeded(value)
	if last < 0 {
		nl := "\n"
		if len(f.Lines) > 0 {
			nl = f.Lines[len(f.Lines)-1].NL
			if nl == "" {
				nl = "\n"
				f.Lines[len(f.Lines)-1].NL = nl
			}
		}
		f.Lines = append(f.Lines, RawLine{Text: newText, NL: nl})
		return true, nil
	}
	if f.Lines[last].Text == newText {
		return false, nil
	}
	f.Lines[last].Text = newText
	return true, nil
}

// Delete removes every assignment line to key, compacting the remaining
// lines. Reports whether anything was removed.
func (f *File) Delete(key string) (changed bool) {
	out := f.Lines[:0:0]
	for _, line := range f.Lines {
		if assign, ok := parseAssignment(line.Text); ok && assign.Key == key {
			changed = true
			continue
		}
		out = append(out, line)
	}
	f.Lines = out
	return changed
}

// WriteAtomic writes contents to path via a temp-file-then-rename sequence
// in the same directory, preserving the existing file's mode (or 0o600 for
// a new file), so a crash mid-write never leaves a half-written .env behind.
func WriteAtomic(path string, contents []byte) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode() & os.ModePerm
	}
	tmp, err := os.CreateTemp(dir, ".env.tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ValidateKeyName rejects key names that can't appear on the left of a
// dotenv assignment.
func ValidateKeyName(key string) error {
	if key == "" {
		return fmt.Errorf("dotenv: key required")
	}
	for _, r := range key {
		switch r {
		case '=', 0, '\n', '\r', ' ', '\t':
			return fmt.Errorf("dotenv: invalid key %q", key)
		}
	}
	return nil
}

// NormalizeValue strips a single layer of matching quotes from raw, the way
// a shell sourcing the file would see it: single-quoted values are taken
// literally, double-quoted values are Go-unquoted (so \n, \", etc. resolve),
// anything else is used as-is after trimming surrounding whitespace.
func NormalizeValue(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1], nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		out, err := strconv.Unquote(raw)
		if err != nil {
			return "", fmt.Errorf("dotenv: invalid quoted value: %w", err)
		}
		return out, nil
	}
	return raw, nil
}

func quoteIfNeeded(value string) string {
	if value == "" {
		return value
	}
	if !strings.ContainsAny(value, " \t#\"'\n") {
		return value
	}
	return strconv.Quote(value)
}

type assignment struct {
	Key      string
	ValueRaw string
}

func parseAssignment(line string) (assignment, bool) {
	if strings.TrimSpace(line) == "" {
		return assignment{}, false
	}
	trimLeft := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimLeft, "#") {
		return assignment{}, false
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return assignment{}, false
	}
	left := line[:eq]
	right := line[eq+1:]
	keyPart := strings.TrimSpace(left)
	keyPart = strings.TrimPrefix(keyPart, "export ")
	key := strings.TrimSpace(keyPart)
	if key == "" {
		return assignment{}, false
	}
	return assignment{Key: key, ValueRaw: stripTrailingComment(right)}, true
}

// stripTrailingComment drops a trailing "# ..." comment from an unquoted
// value; quoted values are left untouched since '#' inside quotes is
// literal, and NormalizeValue handles unquoting separately.
func stripTrailingComment(right string) string {
	trimmed := strings.TrimSpace(right)
	if len(trimmed) >= 2 && (trimmed[0] == '\'' || trimmed[0] == '"') {
		return right
	}
	if idx := strings.IndexByte(right, '#'); idx >= 0 {
		return right[:idx]
	}
	return right
}

func splitRawLines(data []byte) []RawLine {
	if len(data) == 0 {
		return nil
	}
	var out []RawLine
	start := 0
	for start < len(data) {
		idx := bytes.IndexByte(data[start:], '\n')
		if idx < 0 {
			out = append(out, RawLine{Text: string(data[start:]), NL: ""})
			break
		}
		idx += start
		line := data[start:idx]
		nl := "\n"
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
			nl = "\r\n"
		}
		out = append(out, RawLine{Text: string(line), NL: nl})
		start = idx + 1
	}
	return out
}
