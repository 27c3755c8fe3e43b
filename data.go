package x64code

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Emit initialized data.
func (c *Code) Bytes(octets []byte) *Data {
	d := &Data{index: len(c.exprs), b: append([]byte(nil), octets...)}
	c.exprs = append(c.exprs, d)
	return d
}

// Emit text as initialized data. The default encoding is 7-bit ASCII. Other encodings are
// "utf-8", "latin1" (or "binary"), "utf-16le" (or "ucs2"), "hex", "base64", and any name
// known to the WHATWG encoding index.
func (c *Code) Text(s string, enc ...string) (*Data, error) {
	name := ""
	if len(enc) > 0 {
		name = enc[0]
	}
	b, err := encodeText(s, name)
	if err != nil {
		return nil, err
	}
	return c.Bytes(b), nil
}

func encodeText(s, name string) ([]byte, error) {
	var e encoding.Encoding
	switch strings.ToLower(name) {
	case "", "ascii":
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, errors.Wrapf(ErrTextEncoding, "Non-ASCII byte %#x at offset %d", s[i], i)
			}
		}
		return []byte(s), nil
	case "utf8", "utf-8":
		return []byte(s), nil
	case "hex":
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(ErrTextEncoding, "Invalid hex text: %v", err)
		}
		return b, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(ErrTextEncoding, "Invalid base64 text: %v", err)
		}
		return b, nil
	case "latin1", "binary":
		e = charmap.ISO8859_1
	case "utf16le", "utf-16le", "ucs2", "ucs-2":
		e = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	default:
		var err error
		if e, err = htmlindex.Get(name); err != nil {
			return nil, errors.Wrapf(ErrTextEncoding, "%q", name)
		}
	}
	out, err := e.NewEncoder().String(s)
	if err != nil {
		return nil, errors.Wrapf(ErrTextEncoding, "Text not representable in %s: %v", name, err)
	}
	return []byte(out), nil
}

// Emit 16-bit words in little-endian order.
func (c *Code) Words(values ...uint16) *Data {
	return c.WordsOrder(binary.LittleEndian, values...)
}

// Emit 16-bit words in the given byte order.
func (c *Code) WordsOrder(order binary.ByteOrder, values ...uint16) *Data {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		order.PutUint16(b[2*i:], v)
	}
	return c.Bytes(b)
}

// Emit 32-bit doublewords in little-endian order.
func (c *Code) Doublewords(values ...uint32) *Data {
	return c.DoublewordsOrder(binary.LittleEndian, values...)
}

// Emit 32-bit doublewords in the given byte order.
func (c *Code) DoublewordsOrder(order binary.ByteOrder, values ...uint32) *Data {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(b[4*i:], v)
	}
	return c.Bytes(b)
}

// Emit 64-bit quadwords in little-endian order.
func (c *Code) Quadwords(values ...uint64) *Data {
	return c.QuadwordsOrder(binary.LittleEndian, values...)
}

// Emit 64-bit quadwords in the given byte order.
func (c *Code) QuadwordsOrder(order binary.ByteOrder, values ...uint64) *Data {
	pairs := make([]Pair, len(values))
	for i, v := range values {
		pairs[i] = SplitUint64(v)
	}
	return c.QuadwordPairsOrder(order, pairs...)
}

// Emit 64-bit quadwords given as low/high halves, in little-endian order.
func (c *Code) QuadwordPairs(pairs ...Pair) *Data {
	return c.QuadwordPairsOrder(binary.LittleEndian, pairs...)
}

// Emit 64-bit quadwords given as low/high halves, in the given byte order. Each quadword is
// emitted as two doublewords, the low half first for little-endian order and the high half
// first for big-endian order.
func (c *Code) QuadwordPairsOrder(order binary.ByteOrder, pairs ...Pair) *Data {
	halves := make([]uint32, 0, 2*len(pairs))
	for _, p := range pairs {
		if order == binary.BigEndian {
			halves = append(halves, p.Hi, p.Lo)
		} else {
			halves = append(halves, p.Lo, p.Hi)
		}
	}
	return c.DoublewordsOrder(order, halves...)
}

func (c *Code) reserve(unit, count int) (*Reserve, error) {
	if count < 0 {
		return nil, errors.Wrapf(ErrOperandType, "Negative reservation count %d", count)
	}
	r := &Reserve{index: len(c.exprs), unit: unit, count: count}
	c.exprs = append(c.exprs, r)
	return r, nil
}

// Reserve count uninitialized bytes. A negative count fails with ErrOperandType.
func (c *Code) ReserveBytes(count int) (*Reserve, error) { return c.reserve(1, count) }

// Reserve count uninitialized words.
func (c *Code) ReserveWords(count int) (*Reserve, error) { return c.reserve(2, count) }

// Reserve count uninitialized doublewords.
func (c *Code) ReserveDoublewords(count int) (*Reserve, error) { return c.reserve(4, count) }

// Reserve count uninitialized quadwords.
func (c *Code) ReserveQuadwords(count int) (*Reserve, error) { return c.reserve(8, count) }

// Reserve count uninitialized 80-bit extended-precision values.
func (c *Code) ReserveExtended(count int) (*Reserve, error) { return c.reserve(10, count) }

// Emit the contents of a file. I/O errors are returned as reported by the os package.
func (c *Code) IncludeBinary(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Bytes(b), nil
}

// Emit the contents of a file from offset to the end of the file.
func (c *Code) IncludeBinaryFrom(path string, offset int64) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err = f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return c.Bytes(b), nil
}

// Emit length bytes of a file starting at offset. A file too short to supply the range fails
// with io.ErrUnexpectedEOF.
func (c *Code) IncludeBinaryRange(path string, offset, length int64) (*Data, error) {
	if length < 0 {
		return nil, &os.PathError{Op: "read", Path: path, Err: os.ErrInvalid}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Mode().IsRegular() && offset >= 0 && length > fi.Size()-offset {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, length)
	if _, err = f.ReadAt(b, offset); err != nil {
		if err == io.EOF && length > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return c.Bytes(b), nil
}
