// Package escpos builds raw command streams for ESC/POS thermal printers.
package escpos

import "bytes"

const (
	esc = 0x1B
	gs  = 0x1D
)

// Alignment values for Align.
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// Document accumulates ESC/POS commands for one print job.
type Document struct {
	buf bytes.Buffer
}

// NewDocument starts a document with the printer reset (ESC @).
func NewDocument() *Document {
	d := &Document{}
	d.buf.Write([]byte{esc, '@'})
	return d
}

// Align sets justification (ESC a n).
func (d *Document) Align(n byte) *Document {
	d.buf.Write([]byte{esc, 'a', n})
	return d
}

// Bold toggles emphasis (ESC E n).
func (d *Document) Bold(on bool) *Document {
	var n byte
	if on {
		n = 1
	}
	d.buf.Write([]byte{esc, 'E', n})
	return d
}

// Size sets character magnification (GS ! n); w and h range 0-7.
func (d *Document) Size(w, h byte) *Document {
	d.buf.Write([]byte{gs, '!', (w&0x07)<<4 | h&0x07})
	return d
}

// Text writes raw text without a trailing newline.
func (d *Document) Text(s string) *Document {
	d.buf.WriteString(s)
	return d
}

// Line writes text followed by a line feed.
func (d *Document) Line(s string) *Document {
	d.buf.WriteString(s)
	d.buf.WriteByte('\n')
	return d
}

// Divider writes a full-width dashed rule.
func (d *Document) Divider(width int) *Document {
	for i := 0; i < width; i++ {
		d.buf.WriteByte('-')
	}
	d.buf.WriteByte('\n')
	return d
}

// Feed advances n lines.
func (d *Document) Feed(n int) *Document {
	for i := 0; i < n; i++ {
		d.buf.WriteByte('\n')
	}
	return d
}

// Cut feeds and performs a partial cut (GS V 66 0).
func (d *Document) Cut() *Document {
	d.Feed(3)
	d.buf.Write([]byte{gs, 'V', 66, 0})
	return d
}

// Bytes returns the accumulated command stream.
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}
