package ntfsmft

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/dsoprea/go-logging"
)

// JsonlWriter appends one JSON object per line: no top-level array, no
// commas between lines.
type JsonlWriter struct {
	w *bufio.Writer
	enc *json.Encoder
}

// NewJsonlWriter wraps w for buffered line-delimited JSON output.
func NewJsonlWriter(w io.Writer) *JsonlWriter {
	bw := bufio.NewWriter(w)

	return &JsonlWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write encodes v as one line. json.Encoder already appends the trailing
// newline `Encode` promises.
func (jw *JsonlWriter) Write(v interface{}) error {
	if err := jw.enc.Encode(v); err != nil {
		return log.Wrap(err)
	}

	return nil
}

// Flush flushes the underlying buffered writer.
func (jw *JsonlWriter) Flush() error {
	if err := jw.w.Flush(); err != nil {
		return log.Wrap(err)
	}

	return nil
}
