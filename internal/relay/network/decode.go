package network

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decompress undoes a Content-Encoding the transport left in place, which
// happens when the guest set Accept-Encoding itself
func decompress(body []byte, encoding string, limit int64) ([]byte, error) {
	var reader io.Reader

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			reader = fr
		}
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		// Unknown codings pass through and fail the text check if binary
		return body, nil
	}

	out, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", encoding, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("decoded body exceeds %d bytes", limit)
	}
	return out, nil
}

// toUTF8 transcodes body from the declared charset. It reports false when
// the result is not valid UTF-8.
func toUTF8(body []byte, declared string) (string, bool) {
	label := strings.ToLower(strings.TrimSpace(declared))

	if label != "" && label != "utf-8" && label != "utf8" && label != "us-ascii" {
		if enc, _ := charset.Lookup(label); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
				body = decoded
			}
		}
	}

	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return "", false
	}
	return string(body), true
}

// detectCharset guesses the encoding of a body that failed the UTF-8 check
func detectCharset(body []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// mediaType returns the base media type from a Content-Type header,
// sniffing the body when the server sent none
func mediaType(header string, body []byte) (base, declaredCharset string) {
	if header != "" {
		if mt, params, err := mime.ParseMediaType(header); err == nil {
			return mt, params["charset"]
		}
		// Malformed header: keep the part before any parameters
		base, _, _ = strings.Cut(header, ";")
		return strings.ToLower(strings.TrimSpace(base)), ""
	}

	if len(body) == 0 {
		return "", ""
	}

	detected := mimetype.Detect(body).String()
	if mt, params, err := mime.ParseMediaType(detected); err == nil {
		return mt, params["charset"]
	}
	return detected, ""
}
