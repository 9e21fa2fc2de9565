package knowledge

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
)

// Compress gzips text and re-encodes it as base64 so it can live in a
// text column. The transform is deterministic and reversible. Writes to
// the in-memory buffer cannot fail, so Compress never errors.
func Compress(text string) string {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(text))
	_ = zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Decompress reverses Compress. Anything that fails to decode, malformed
// data or a record written before compression was introduced, is returned
// unchanged. Decode failure is never an error: it would strand every
// legacy record behind an unreadable read path.
func Decompress(stored string) string {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return stored
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return stored
	}
	text, err := io.ReadAll(zr)
	if err != nil {
		return stored
	}
	if err := zr.Close(); err != nil {
		return stored
	}
	return string(text)
}
