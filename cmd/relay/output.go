package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/relay/internal/relay/cookies"
)

// Format is an output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func parseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// render writes v in the requested format followed by a newline
func render(w io.Writer, v interface{}, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(v)
	default:
		data, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// parseCookies turns origin=value flags into jar entries. The origin part
// may be any URL on the origin; the value keeps any further '=' signs.
func parseCookies(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, flag := range flags {
		rawOrigin, value, ok := cutOrigin(flag)
		if !ok || value == "" {
			return nil, fmt.Errorf("invalid --cookie %q: want origin=value", flag)
		}
		origin, err := cookies.Origin(rawOrigin)
		if err != nil {
			return nil, fmt.Errorf("invalid --cookie %q: %w", flag, err)
		}
		out[origin] = value
	}
	return out, nil
}

// cutOrigin splits at the first '=' after the URL authority so query
// strings in the origin part do not confuse the split
func cutOrigin(flag string) (string, string, bool) {
	start := 0
	if i := strings.Index(flag, "://"); i >= 0 {
		start = i + 3
	}
	i := strings.IndexByte(flag[start:], '=')
	if i < 0 {
		return "", "", false
	}
	i += start
	return flag[:i], flag[i+1:], true
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
