package orchestrator

import "strings"

// Narrator re-chunks streamed synthesis text for display: the first
// paragraph is released word by word, later paragraphs as whole chunks.
// The split is cosmetic; concatenating every emitted chunk reproduces the
// input exactly.
type Narrator struct {
	emit  func(chunk string, firstParagraph bool)
	buf   string
	first bool
	full  strings.Builder
}

// NewNarrator creates a narrator that forwards chunks to emit.
func NewNarrator(emit func(chunk string, firstParagraph bool)) *Narrator {
	return &Narrator{emit: emit, first: true}
}

// Write feeds one streamed delta into the narrator.
func (n *Narrator) Write(delta string) {
	n.full.WriteString(delta)
	n.buf += delta
	n.drain()
}

func (n *Narrator) drain() {
	for n.first {
		space := strings.IndexByte(n.buf, ' ')
		para := strings.Index(n.buf, "\n\n")

		switch {
		case para >= 0 && (space < 0 || para < space):
			n.emit(n.buf[:para+2], true)
			n.buf = n.buf[para+2:]
			n.first = false
		case space >= 0:
			n.emit(n.buf[:space+1], true)
			n.buf = n.buf[space+1:]
		default:
			return
		}
	}

	for {
		para := strings.Index(n.buf, "\n\n")
		if para < 0 {
			return
		}
		n.emit(n.buf[:para+2], false)
		n.buf = n.buf[para+2:]
	}
}

// Flush releases any buffered tail. Call once after the stream ends.
func (n *Narrator) Flush() {
	if n.buf != "" {
		n.emit(n.buf, n.first)
		n.buf = ""
	}
}

// Text returns everything written so far.
func (n *Narrator) Text() string {
	return n.full.String()
}
