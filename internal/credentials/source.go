// Package credentials loads secret values from the process environment and
// dotenv files and keeps a secrets.Registry in sync with them.
package credentials

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
)

// Source yields named credential values.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
}

// EnvSource selects environment variables by exact name, prefix or suffix.
type EnvSource struct {
	Names    []string
	Prefixes []string
	Suffixes []string

	// Environ defaults to os.Environ.
	Environ func() []string
}

func (s EnvSource) Name() string { return "env" }

func (s EnvSource) Load(_ context.Context) (map[string]string, error) {
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}
	out := make(map[string]string)
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" || !s.selects(k) {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func (s EnvSource) selects(key string) bool {
	for _, n := range s.Names {
		if key == n {
			return true
		}
	}
	for _, p := range s.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	for _, suf := range s.Suffixes {
		if strings.HasSuffix(key, suf) {
			return true
		}
	}
	return false
}

// FileSource reads KEY=VALUE pairs from a dotenv file. A missing file
// yields no values.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	vals, err := ParseDotenv(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return vals, nil
}

// ParseDotenv parses dotenv content: blank lines and # comments are
// skipped, an optional "export " prefix is allowed, double-quoted values
// understand \n \t \" and \\ escapes, single-quoted values are literal and
// unquoted values end at an inline " #" comment.
func ParseDotenv(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", lineNo)
		}
		v, err := parseValue(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseValue(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	switch v[0] {
	case '\'':
		end := strings.IndexByte(v[1:], '\'')
		if end < 0 {
			return "", fmt.Errorf("unterminated single quote")
		}
		return v[1 : end+1], nil
	case '"':
		var b strings.Builder
		for i := 1; i < len(v); i++ {
			c := v[i]
			switch {
			case c == '"':
				return b.String(), nil
			case c == '\\' && i+1 < len(v):
				i++
				switch v[i] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				default:
					b.WriteByte(v[i])
				}
			default:
				b.WriteByte(c)
			}
		}
		return "", fmt.Errorf("unterminated double quote")
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v, nil
}
