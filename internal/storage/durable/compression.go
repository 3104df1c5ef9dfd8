package durable

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how record payloads are stored. The format is kept
// per row, so a store can read rows written with any setting.
type Compression uint8

const (
	// CompressionNone stores payloads as given.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd.
	CompressionZSTD Compression = 2
)

// String returns the configuration name of the Compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("durable: unknown compression %q", s)
	}
}

// Shared zstd coders, one encoder per level. EncodeAll and DecodeAll are
// safe for concurrent use.
var (
	zstdMu       sync.Mutex
	zstdEncoders = map[zstd.EncoderLevel]*zstd.Encoder{}
	zstdDecoder  = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

func zstdEncoder(level int) (*zstd.Encoder, error) {
	l := zstd.SpeedDefault
	if level > 0 {
		l = zstd.EncoderLevelFromZstd(level)
	}

	zstdMu.Lock()
	defer zstdMu.Unlock()
	if enc, ok := zstdEncoders[l]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(l))
	if err != nil {
		return nil, err
	}
	zstdEncoders[l] = enc
	return enc, nil
}

// codec compresses record payloads.
type codec struct {
	compression Compression
	level       int
}

// encode returns the stored payload and the format actually used. Data
// that does not shrink is stored uncompressed.
func (c codec) encode(data []byte) ([]byte, Compression, error) {
	if len(data) == 0 {
		return data, CompressionNone, nil
	}

	var out []byte
	switch c.compression {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		out = buf[:n]
	case CompressionZSTD:
		enc, err := zstdEncoder(c.level)
		if err != nil {
			return nil, 0, err
		}
		out = enc.EncodeAll(data, nil)
	default:
		return data, CompressionNone, nil
	}

	if len(out) == 0 || len(out) >= len(data) {
		return data, CompressionNone, nil
	}
	return out, c.compression, nil
}

// decode reverses encode. size is the uncompressed length.
func decode(payload []byte, format Compression, size int) ([]byte, error) {
	switch format {
	case CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, n, size)
		}
		return out, nil
	case CompressionZSTD:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrCorrupt, format)
	}
}
