package encoding

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how encoded sequence columns are stored.
type Compression string

const (
	// CompressionNone stores codec output as is.
	CompressionNone Compression = "none"
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = "lz4"
	// CompressionZSTD uses ZSTD at the default level.
	CompressionZSTD Compression = "zstd"
)

// ParseCompression maps a config or flag value to a Compression.
// The empty string means CompressionNone.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4, CompressionZSTD:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// Block header: [uncompressed uint32][compressed uint32].
// A compressed size of 0 means the payload is stored raw.
const blockHeaderSize = 8

// MaxBlockSize bounds the uncompressed size of one column value.
const MaxBlockSize = 256 << 20

// lz4MaxRatio is the largest expansion one LZ4 block byte can encode.
const lz4MaxRatio = 255

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(MaxBlockSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return dec, nil
}

// Compress wraps codec output for storage. Output is deterministic for a
// given input and Compression.
func Compress(c Compression, data []byte) ([]byte, error) {
	var compressed []byte

	if c != "" && c != CompressionNone && len(data) > MaxBlockSize {
		return nil, fmt.Errorf("%s compress: %d bytes exceeds maximum block size", c, len(data))
	}

	switch c {
	case "", CompressionNone:
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = dst[:n]
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	// Incompressible input is kept raw behind the header.
	if len(compressed) == 0 || len(compressed) >= len(data) {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// Decompress reverses Compress. Corrupt blocks yield a CodecError.
func Decompress(c Compression, data []byte) ([]byte, error) {
	if c == "" || c == CompressionNone {
		return data, nil
	}
	if len(data) < blockHeaderSize {
		return nil, codecErr(string(c), "block too small for header")
	}

	size := binary.LittleEndian.Uint32(data[0:])
	csize := binary.LittleEndian.Uint32(data[4:])
	body := data[blockHeaderSize:]

	if csize == 0 {
		if uint32(len(body)) != size {
			return nil, codecErr(string(c), "raw block holds %d bytes, header says %d", len(body), size)
		}
		return body, nil
	}
	if uint32(len(body)) != csize {
		return nil, codecErr(string(c), "compressed block holds %d bytes, header says %d", len(body), csize)
	}
	if size > MaxBlockSize {
		return nil, codecErr(string(c), "declared size %d exceeds maximum block size", size)
	}

	switch c {
	case CompressionLZ4:
		if uint64(size) > uint64(csize)*lz4MaxRatio {
			return nil, codecErr(string(c), "declared size %d impossible for %d compressed bytes", size, csize)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, codecErr(string(c), "%v", err)
		}
		if uint32(n) != size {
			return nil, codecErr(string(c), "decompressed size mismatch")
		}
		return out, nil
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, codecErr(string(c), "%v", err)
		}
		if uint32(len(out)) != size {
			return nil, codecErr(string(c), "decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
