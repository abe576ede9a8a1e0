package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"runtime"
	"testing"
)

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"LZ4", CompressionLZ4, false},
		{" zstd ", CompressionZSTD, false},
		{"gzip", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	repetitive := make([]uint32, 4096)
	for i := range repetitive {
		repetitive[i] = uint32(i % 8)
	}
	compressible, _ := EncodeTokenIDs(repetitive)
	tiny, _ := EncodeTokenIDs([]uint32{7})
	empty, _ := EncodeTokenIDs([]uint32{})

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for name, data := range map[string][]byte{"compressible": compressible, "tiny": tiny, "empty": empty} {
			t.Run(string(c)+"/"+name, func(t *testing.T) {
				packed, err := Compress(c, data)
				if err != nil {
					t.Fatalf("Compress() error = %v", err)
				}
				again, _ := Compress(c, data)
				if !bytes.Equal(packed, again) {
					t.Error("Compress() is not deterministic")
				}
				if c != CompressionNone && name == "compressible" && len(packed) >= len(data) {
					t.Errorf("expected compression, got %d >= %d bytes", len(packed), len(data))
				}

				unpacked, err := Decompress(c, packed)
				if err != nil {
					t.Fatalf("Decompress() error = %v", err)
				}
				if !bytes.Equal(unpacked, data) {
					t.Error("round trip mismatch")
				}
			})
		}
	}
}

func TestDecompressCorrupt(t *testing.T) {
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		if _, err := Decompress(c, []byte{1, 2, 3}); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: short block error = %v, want ErrMalformed", c, err)
		}
		bad := []byte{16, 0, 0, 0, 4, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef}
		if _, err := Decompress(c, bad); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: garbage block error = %v, want ErrMalformed", c, err)
		}
	}
}

func TestDecompressBoundsDeclaredSize(t *testing.T) {
	block := func(size, csize uint32) []byte {
		b := make([]byte, blockHeaderSize+int(csize))
		binary.LittleEndian.PutUint32(b[0:], size)
		binary.LittleEndian.PutUint32(b[4:], csize)
		return b
	}

	tests := []struct {
		name string
		c    Compression
		data []byte
	}{
		{"lz4 huge size", CompressionLZ4, block(0xFFFFFFF0, 4)},
		{"zstd huge size", CompressionZSTD, block(0xFFFFFFF0, 4)},
		{"lz4 above ratio", CompressionLZ4, block(4*lz4MaxRatio+1, 4)},
		{"just above max block", CompressionZSTD, block(MaxBlockSize+1, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Decompress(tt.c, tt.data)
			runtime.ReadMemStats(&after)

			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Decompress() error = %v, want ErrMalformed", err)
			}
			if delta := after.TotalAlloc - before.TotalAlloc; delta > 1<<20 {
				t.Errorf("Decompress() allocated %d bytes for a %d-byte block", delta, len(tt.data))
			}
		})
	}
}
