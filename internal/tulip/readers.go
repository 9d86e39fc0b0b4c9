package tulip

// readers.go prepares CSV input for encoding/csv without buffering the file:
//
//   - CountingReader tracks raw bytes consumed for progress logging
//   - an optional charset decoder converts the input to UTF-8
//   - skipBOM drops a leading UTF-8 byte order mark (Excel exports)
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//
// wrapCSVInput chains them in that order, so progress is measured against
// the file size before any decoding changes the byte count.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Sanitizer rewrites invalid UTF-8. A multi-byte sequence split
// across reads is held back until the next read completes it. Output is
// buffered, so callers may read with buffers of any size.
type utf8Sanitizer struct {
	r       io.Reader
	scratch [4096]byte
	raw     []byte
	pending []byte
	out     []byte
	err     error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	m, err := s.r.Read(s.scratch[:])

	s.raw = append(s.raw[:0], s.pending...)
	s.raw = append(s.raw, s.scratch[:m]...)
	s.pending = s.pending[:0]

	w := s.sanitize(s.raw, err == io.EOF)
	s.out = s.raw[:w]
	s.err = err
}

func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if data[r] < utf8.RuneSelf {
			data[w] = data[r]
			w++
			r++
			continue
		}

		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}

		ru, size := utf8.DecodeRune(data[r:])
		if ru == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return w
}

// CountingReader counts the bytes read through it. Count is safe to call
// from another goroutine.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	Total int64 // 0 when unknown
}

// NewCountingReader wraps r. total is the expected size, or 0.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 { return c.n.Load() }

// Progress returns the percentage of Total read, or 0 if Total is unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(c.Count() * 100 / c.Total)
}

// wrapCSVInput counts the raw input, decodes it with cs when non-nil, then
// strips the BOM and sanitizes. The returned reader is what the CSV parser
// reads; the counter reports progress.
func wrapCSVInput(r io.Reader, total int64, cs encoding.Encoding) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	var in io.Reader = counter
	if cs != nil {
		in = transform.NewReader(in, cs.NewDecoder())
	}
	return newUTF8Sanitizer(skipBOM(in)), counter
}
