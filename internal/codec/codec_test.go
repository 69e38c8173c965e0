package codec

import (
	"bytes"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCompressors_RoundTrip(t *testing.T) {
	t.Parallel()
	payload := []byte(strings.Repeat("compress me please, ", 500))

	for _, name := range RegisteredCompressors() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c, err := NewCompressor(name)
			if err != nil {
				t.Fatalf("NewCompressor(%q): %v", name, err)
			}
			if c.Name() != name {
				t.Errorf("Name() = %q, want %q", c.Name(), name)
			}

			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if name != "none" && len(compressed) >= len(payload) {
				t.Errorf("expected %s output (%d bytes) to be smaller than input (%d bytes)", name, len(compressed), len(payload))
			}

			restored, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Error("round trip changed the payload")
			}
		})
	}
}

func TestGzip_ZeroLevelCompresses(t *testing.T) {
	t.Parallel()
	payload := []byte(strings.Repeat("a", 10000))

	compressed, err := Gzip{}.Compress(payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(payload)/10 {
		t.Fatalf("Expected zero-value Gzip to use the default level, got %d bytes from %d", len(compressed), len(payload))
	}
	restored, err := Gzip{}.Decompress(compressed)
	if err != nil || !bytes.Equal(restored, payload) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestCompressors_DecompressGarbage(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"gzip", "zstd"} {
		c, err := NewCompressor(name)
		if err != nil {
			t.Fatalf("NewCompressor(%q): %v", name, err)
		}
		if _, err := c.Decompress([]byte("definitely not compressed")); err == nil {
			t.Errorf("%s: expected error decompressing garbage", name)
		}
	}
}

func TestNewCompressor_Unknown(t *testing.T) {
	t.Parallel()
	if _, err := NewCompressor("lzma"); err == nil {
		t.Fatal("expected error for unknown compressor")
	}
}

func TestRegisterCompressor_DuplicatePanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterCompressor("gzip", func() (Compressor, error) { return None{}, nil })
}

func TestRegisteredCompressors_Sorted(t *testing.T) {
	t.Parallel()
	names := RegisteredCompressors()
	want := []string{"brotli", "gzip", "none", "zstd"}
	if len(names) < len(want) {
		t.Fatalf("expected at least %v, got %v", want, names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("compressors not sorted: %v", names)
			break
		}
	}
}

type report struct {
	Title string   `json:"title"`
	Rows  []string `json:"rows"`
}

func TestJSON_RoundTrip(t *testing.T) {
	t.Parallel()
	s := JSON{}
	in := report{Title: "weekly", Rows: []string{"a", "b"}}

	data, err := s.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out report
	if err := s.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Title != in.Title || len(out.Rows) != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}

	if err := s.Unmarshal([]byte("{broken"), &out); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestProto_MessageRoundTrip(t *testing.T) {
	t.Parallel()
	s := Proto{}
	data, err := s.Marshal(wrapperspb.String("hello"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out *wrapperspb.StringValue
	if err := s.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.GetValue() != "hello" {
		t.Errorf("got %q, want %q", out.GetValue(), "hello")
	}
}

func TestProto_FallsBackToJSON(t *testing.T) {
	t.Parallel()
	s := Proto{}
	data, err := s.Marshal("plain")
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"plain"` {
		t.Errorf("expected JSON encoding, got %q", data)
	}

	var out string
	if err := s.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != "plain" {
		t.Errorf("got %q, want %q", out, "plain")
	}
}

func TestProto_MalformedMessage(t *testing.T) {
	t.Parallel()
	var out *wrapperspb.StringValue
	if err := (Proto{}).Unmarshal([]byte{0xff, 0xff, 0xff}, &out); err == nil {
		t.Error("expected error for malformed protobuf payload")
	}
}

func TestNewSerializer(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "json", "proto"} {
		s, err := NewSerializer(name)
		if err != nil {
			t.Errorf("NewSerializer(%q): %v", name, err)
			continue
		}
		if name != "" && s.Name() != name {
			t.Errorf("Name() = %q, want %q", s.Name(), name)
		}
	}
	if _, err := NewSerializer("xml"); err == nil {
		t.Error("expected error for unknown serializer")
	}
}
