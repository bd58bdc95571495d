package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipTag prefixes compressed storables so decode can distinguish them from
// plain JSON. A storable without the tag is decoded as-is.
var gzipTag = []byte("rcz1:")

// Codec converts entries to and from the storable form written to the
// remote tier.
//
// Contract:
// - Round trip: Decode(Encode(e)) must equal e for any valid entry.
// - Resilience: Decode must tolerate a missing compression tag and fall
//   back to plain decoding rather than failing.
// - Concurrency: implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes an entry into its storable form.
	Encode(entry *Entry) ([]byte, error)

	// Decode reconstructs an entry from its storable form.
	Decode(data []byte) (*Entry, error)
}

// JSONCodec stores entries as plain JSON.
type JSONCodec struct{}

// NewJSONCodec creates a plain JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode serializes the entry as JSON.
func (c *JSONCodec) Encode(entry *Entry) ([]byte, error) {
	if entry == nil {
		return nil, ErrEntryInvalid
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("cache: encode failed: %w", err)
	}
	return data, nil
}

// Decode parses a JSON storable. A gzip tag is tolerated and inflated so a
// compression flag flip does not orphan previously written entries.
func (c *JSONCodec) Decode(data []byte) (*Entry, error) {
	if bytes.HasPrefix(data, gzipTag) {
		return gunzipEntry(data[len(gzipTag):])
	}
	return unmarshalEntry(data)
}

// GzipCodec stores entries as tagged gzip-compressed JSON.
type GzipCodec struct {
	level int
}

// NewGzipCodec creates a compressing codec at the default compression level.
func NewGzipCodec() *GzipCodec {
	return &GzipCodec{level: gzip.DefaultCompression}
}

// Encode serializes and compresses the entry, prefixing the gzip tag.
func (c *GzipCodec) Encode(entry *Entry) ([]byte, error) {
	if entry == nil {
		return nil, ErrEntryInvalid
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("cache: encode failed: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(gzipTag)
	zw, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("cache: gzip init failed: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("cache: gzip write failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("cache: gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode inflates a tagged storable. Untagged data is decoded as plain JSON
// so entries written before compression was enabled remain readable.
func (c *GzipCodec) Decode(data []byte) (*Entry, error) {
	if !bytes.HasPrefix(data, gzipTag) {
		return unmarshalEntry(data)
	}
	return gunzipEntry(data[len(gzipTag):])
}

func gunzipEntry(compressed []byte) (*Entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("cache: corrupt compressed entry: %w", ErrEntryInvalid)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("cache: corrupt compressed entry: %w", ErrEntryInvalid)
	}
	return unmarshalEntry(data)
}

func unmarshalEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("cache: malformed entry: %w", ErrEntryInvalid)
	}
	return &entry, nil
}

// Ensure both codecs implement Codec
var (
	_ Codec = (*JSONCodec)(nil)
	_ Codec = (*GzipCodec)(nil)
)
