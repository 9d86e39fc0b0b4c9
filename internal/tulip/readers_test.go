package tulip

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"golang.org/x/text/encoding/charmap"
)

func TestSkipBOM(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "id,name"...), "id,name"},
		{"without BOM", []byte("id,name"), "id,name"},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"empty", nil, ""},
		{"partial BOM kept", []byte{0xEF, 0xBB, 'x'}, string([]byte{0xEF, 0xBB, 'x'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(skipBOM(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("a,b\n"), "a,b\n"},
		{"multibyte kept", []byte("café,naïve"), "café,naïve"},
		{"invalid byte replaced", []byte{'a', 0x80, 'b'}, "a?b"},
		{"truncated sequence at end", []byte{'a', 0xC3}, "a?"},
		{"latin1 byte", []byte{'c', 'a', 'f', 0xE9}, "caf?"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitAcrossReads(t *testing.T) {
	input := "zürich,東京,ok"
	got, err := io.ReadAll(newUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestUTF8Sanitizer_TinyReadBuffer(t *testing.T) {
	s := newUTF8Sanitizer(bytes.NewReader([]byte{'h', 0xC3, 0xA9, 0x80, '!'}))

	var got []byte
	p := make([]byte, 1)
	for {
		n, err := s.Read(p)
		got = append(got, p[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if string(got) != "hé?!" {
		t.Errorf("got %q, want %q", got, "hé?!")
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	r := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 300)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := r.Progress(); got != 30 {
		t.Errorf("Progress after 300 bytes = %d, want 30", got)
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if r.Count() != 1000 {
		t.Errorf("Count = %d, want 1000", r.Count())
	}
	if r.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", r.Progress())
	}
}

func TestCountingReader_UnknownTotal(t *testing.T) {
	r := NewCountingReader(strings.NewReader("abc"), 0)
	_, _ = io.ReadAll(r)
	if r.Progress() != 0 {
		t.Errorf("Progress with unknown total = %d, want 0", r.Progress())
	}
}

func TestWrapCSVInput(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'i', 'd', '\n', 'a', 0xFF}...)
	r, counter := wrapCSVInput(bytes.NewReader(input), int64(len(input)), nil)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "id\na?" {
		t.Errorf("got %q, want %q", got, "id\na?")
	}
	if counter.Count() != int64(len(input)) {
		t.Errorf("Count = %d, want %d", counter.Count(), len(input))
	}
	if counter.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", counter.Progress())
	}
}

func TestWrapCSVInput_CharsetCountsRawBytes(t *testing.T) {
	input, err := charmap.ISO8859_1.NewEncoder().String("name\n" + strings.Repeat("éàü\n", 100))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r, counter := wrapCSVInput(strings.NewReader(input), int64(len(input)), charmap.ISO8859_1)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(got), "name\néàü\n") {
		t.Errorf("decoded = %q", got[:16])
	}
	if counter.Count() != int64(len(input)) {
		t.Errorf("Count = %d, want raw size %d", counter.Count(), len(input))
	}
	if counter.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", counter.Progress())
	}
}
