// Package sse decodes server-sent-event streams into raw frame payloads.
//
// DESIGN: The decoder understands exactly the chat-completions subset of SSE:
// "data: <json>" lines, blank-line event boundaries, and a literal
// "data: [DONE]" sentinel. Multi-line data fields are newline-joined per the
// SSE spec; comment lines and non-data fields are ignored. The decoder never
// interprets payload JSON — that is the normalizer's job.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// doneSentinel terminates an OpenAI-style stream.
const doneSentinel = "[DONE]"

// maxLine bounds a single SSE line (1 MiB); frames beyond this indicate a
// broken peer rather than legitimate content.
const maxLine = 1 << 20

// Decoder yields raw event payloads from an octet stream.
// It is single-consumer; one stream is drained by exactly one request.
type Decoder struct {
	scanner *bufio.Scanner
	data    bytes.Buffer
	done    bool
	err     error
}

// NewDecoder wraps r. The caller retains ownership of r and must close it.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Decoder{scanner: sc}
}

// Next advances to the next event payload. It returns false at end of
// stream, on the [DONE] sentinel, or on a read error.
func (d *Decoder) Next() bool {
	if d.err != nil || d.done {
		return false
	}
	d.data.Reset()

	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")

		if line == "" {
			if d.data.Len() > 0 {
				return true
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		value, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		if value == doneSentinel {
			d.done = true
			return d.data.Len() > 0
		}
		if d.data.Len() > 0 {
			d.data.WriteByte('\n')
		}
		d.data.WriteString(value)
	}

	if err := d.scanner.Err(); err != nil {
		d.err = err
		return false
	}
	// EOF without a closing blank line still delivers the buffered payload.
	return d.data.Len() > 0
}

// Data returns the current event payload. Valid until the next call to Next.
func (d *Decoder) Data() []byte {
	return d.data.Bytes()
}

// Done reports whether the [DONE] sentinel was observed.
func (d *Decoder) Done() bool {
	return d.done
}

// Err returns the first read error, if any. EOF is not an error.
func (d *Decoder) Err() error {
	return d.err
}
