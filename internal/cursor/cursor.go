// Package cursor implements the position-tracking read head the parser
// driver and every rule's Search/Build step read through. It operates on
// raw bytes but splits on grapheme clusters (via github.com/rivo/uniseg)
// where delimiter recognition needs it — list markers and style
// delimiters — so a multi-byte emoji or combining character is never
// bisected mid-cluster.
package cursor

import (
	"github.com/rivo/uniseg"

	"github.com/oxhq/nml/internal/source"
)

// Cursor is a bounded, position-tracking read head over a single Source.
// Rules never hold a Cursor across a Build call's return — it is consumed
// or advanced synchronously within the parser driver's loop.
type Cursor struct {
	src *source.Source
	pos int
}

// New creates a cursor positioned at the start of src.
func New(src *source.Source) *Cursor {
	return &Cursor{src: src}
}

// AtOffset creates a cursor positioned at the given byte offset of src.
func AtOffset(src *source.Source, offset int) *Cursor {
	return &Cursor{src: src, pos: offset}
}

// Source returns the source this cursor reads through.
func (c *Cursor) Source() *source.Source { return c.src }

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Position returns the current position as a source.Position.
func (c *Cursor) Position() source.Position {
	return source.Position{Source: c.src, Offset: c.pos}
}

// Len returns the total length of the underlying source content.
func (c *Cursor) Len() int { return len(c.src.Bytes) }

// AtEnd reports whether the cursor has reached the end of the source.
func (c *Cursor) AtEnd() bool { return c.pos >= c.Len() }

// Remaining returns the unread tail of the source.
func (c *Cursor) Remaining() []byte { return c.src.Bytes[c.pos:] }

// Peek returns up to n bytes starting at the current position, without
// advancing. If fewer than n bytes remain, the short slice is returned.
func (c *Cursor) Peek(n int) []byte {
	end := c.pos + n
	if end > c.Len() {
		end = c.Len()
	}
	return c.src.Bytes[c.pos:end]
}

// PeekAt returns up to n bytes starting at offset, without moving the cursor.
func (c *Cursor) PeekAt(offset, n int) []byte {
	if offset < 0 {
		offset = 0
	}
	end := offset + n
	if end > c.Len() {
		end = c.Len()
	}
	if offset > end {
		return nil
	}
	return c.src.Bytes[offset:end]
}

// HasPrefixAt reports whether the source content at offset starts with prefix.
func (c *Cursor) HasPrefixAt(offset int, prefix string) bool {
	p := c.PeekAt(offset, len(prefix))
	return string(p) == prefix
}

// Advance moves the cursor forward by n bytes, clamped to the source length.
func (c *Cursor) Advance(n int) {
	c.pos += n
	if c.pos > c.Len() {
		c.pos = c.Len()
	}
}

// SeekTo moves the cursor to an absolute byte offset.
func (c *Cursor) SeekTo(offset int) { c.pos = offset }

// Byte returns the byte at the current position and true, or (0, false) at EOF.
func (c *Cursor) Byte() (byte, bool) {
	if c.AtEnd() {
		return 0, false
	}
	return c.src.Bytes[c.pos], true
}

// Grapheme reads and consumes a single grapheme cluster starting at the
// current position, returning its bytes. It never splits a combining
// sequence, which matters for list-marker and style-delimiter recognition
// over non-ASCII text.
func (c *Cursor) Grapheme() []byte {
	rest := c.Remaining()
	if len(rest) == 0 {
		return nil
	}
	cluster, _, _, _ := uniseg.FirstGraphemeCluster(rest, -1)
	c.Advance(len(cluster))
	return cluster
}

// Identifier consumes and returns a run of identifier bytes: ASCII letters,
// digits and underscore, not starting with a digit.
func (c *Cursor) Identifier() (string, bool) {
	start := c.pos
	first := true
	for !c.AtEnd() {
		b, _ := c.Byte()
		if isIdentByte(b, first) {
			first = false
			c.Advance(1)
			continue
		}
		break
	}
	if c.pos == start {
		return "", false
	}
	return string(c.src.Bytes[start:c.pos]), true
}

func isIdentByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

// Integer consumes and returns a run of ASCII digits.
func (c *Cursor) Integer() (int, bool) {
	start := c.pos
	for !c.AtEnd() {
		b, _ := c.Byte()
		if b < '0' || b > '9' {
			break
		}
		c.Advance(1)
	}
	if c.pos == start {
		return 0, false
	}
	n := 0
	for _, b := range c.src.Bytes[start:c.pos] {
		n = n*10 + int(b-'0')
	}
	return n, true
}

// PropertyList consumes a `[k=v,k2=v2,...]` span starting at the current
// byte (which must be '['), returning the parsed map and consuming through
// the matching ']'. Returns false if the current byte isn't '[' or the list
// is unterminated within the source.
func (c *Cursor) PropertyList() (map[string]string, bool) {
	if c.AtEnd() {
		return nil, false
	}
	b, _ := c.Byte()
	if b != '[' {
		return nil, false
	}
	c.Advance(1)
	props := map[string]string{}
	for {
		c.skipSpaces()
		key, ok := c.Identifier()
		if !ok {
			break
		}
		c.skipSpaces()
		val := ""
		if cb, ok := c.Byte(); ok && cb == '=' {
			c.Advance(1)
			val = c.readUntilAny("],")
		}
		props[key] = val
		c.skipSpaces()
		if cb, ok := c.Byte(); ok && cb == ',' {
			c.Advance(1)
			continue
		}
		break
	}
	if cb, ok := c.Byte(); ok && cb == ']' {
		c.Advance(1)
		return props, true
	}
	return props, false
}

// BalancedSpan consumes bytes from the current position up to (but not
// including) the matching close delimiter for the open delimiter just
// consumed by the caller, honoring nested occurrences of open/close. It
// returns the enclosed text and leaves the cursor positioned just after the
// closing delimiter, or returns false if the source ends unbalanced.
func (c *Cursor) BalancedSpan(open, close byte) (string, bool) {
	depth := 1
	start := c.pos
	for !c.AtEnd() {
		b, _ := c.Byte()
		switch b {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				text := string(c.src.Bytes[start:c.pos])
				c.Advance(1)
				return text, true
			}
		}
		c.Advance(1)
	}
	return string(c.src.Bytes[start:c.pos]), false
}

func (c *Cursor) skipSpaces() {
	for !c.AtEnd() {
		b, _ := c.Byte()
		if b == ' ' || b == '\t' {
			c.Advance(1)
			continue
		}
		break
	}
}

func (c *Cursor) readUntilAny(stop string) string {
	start := c.pos
	for !c.AtEnd() {
		b, _ := c.Byte()
		for i := 0; i < len(stop); i++ {
			if b == stop[i] {
				return string(c.src.Bytes[start:c.pos])
			}
		}
		c.Advance(1)
	}
	return string(c.src.Bytes[start:c.pos])
}
