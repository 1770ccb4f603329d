package core

// streaming.go provides the reader chain applied to uploaded CSV bodies:
//
//   - BOMSkippingReader: removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Validator: fails with ErrInvalidEncoding on the first invalid
//     UTF-8 sequence instead of passing garbage to the parser
//
// Both work on the stream without buffering the whole file.

import (
	"errors"
	"io"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned when an upload is not valid UTF-8.
var ErrInvalidEncoding = errors.New("encoding error: file is not valid UTF-8")

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var head [3]byte
		n, err := io.ReadFull(r.reader, head[:])
		switch {
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			err = nil
		case err != nil:
			return 0, err
		}
		if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			n = 0
		}
		r.pending = append(r.pending, head[:n]...)
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// UTF8Validator wraps an io.Reader and fails on invalid UTF-8.
// Multi-byte sequences split across reads are held back until complete.
type UTF8Validator struct {
	reader  io.Reader
	buf     []byte
	ready   []byte
	pending []byte
	err     error
}

// NewUTF8Validator creates a validating reader.
func NewUTF8Validator(r io.Reader) *UTF8Validator {
	return &UTF8Validator{reader: r, buf: make([]byte, 32*1024)}
}

// Read implements io.Reader.
func (v *UTF8Validator) Read(p []byte) (int, error) {
	for {
		if len(v.ready) > 0 {
			n := copy(p, v.ready)
			v.ready = v.ready[n:]
			return n, nil
		}
		if v.err != nil {
			return 0, v.err
		}

		n, err := v.reader.Read(v.buf)
		data := append(v.pending, v.buf[:n]...)
		valid := validPrefix(data, err == io.EOF)
		if valid < 0 {
			v.err = ErrInvalidEncoding
			continue
		}
		v.ready = data[:valid]
		v.pending = append([]byte(nil), data[valid:]...)
		v.err = err
	}
}

// validPrefix returns the length of the longest prefix of data that is valid
// UTF-8, holding back an incomplete trailing sequence unless atEOF.
// Returns -1 if data contains an invalid sequence.
func validPrefix(data []byte, atEOF bool) int {
	i := 0
	for i < len(data) {
		if data[i] < utf8.RuneSelf {
			i++
			continue
		}
		if !utf8.FullRune(data[i:]) {
			if atEOF {
				return -1
			}
			return i
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return -1
		}
		i += size
	}
	return i
}

// WrapUpload applies BOM skipping and UTF-8 validation to an upload body.
func WrapUpload(r io.Reader) io.Reader {
	return NewUTF8Validator(NewBOMSkippingReader(r))
}
