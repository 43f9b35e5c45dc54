package logger

import (
	"bytes"
	"io"
	"strings"
)

// Mask replaces secrets in log lines and surfaced error messages.
const Mask = "[REDACTED]"

// RedactingWriter scrubs known secrets from every write before it reaches
// the underlying writer. zerolog emits one event per Write call, so a
// secret can never straddle two writes.
type RedactingWriter struct {
	out     io.Writer
	secrets [][]byte
}

// NewRedactingWriter wraps out. Empty secrets are ignored.
func NewRedactingWriter(out io.Writer, secrets []string) *RedactingWriter {
	w := &RedactingWriter{out: out}
	for _, s := range secrets {
		if s != "" {
			w.secrets = append(w.secrets, []byte(s))
		}
	}
	return w
}

// Write implements io.Writer. It reports len(p) on success so callers never
// see a short write caused by redaction changing the length.
func (w *RedactingWriter) Write(p []byte) (int, error) {
	out := p
	for _, s := range w.secrets {
		if bytes.Contains(out, s) {
			out = bytes.ReplaceAll(out, s, []byte(Mask))
		}
	}
	if _, err := w.out.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Redact scrubs secrets from an arbitrary string
func Redact(msg string, secrets []string) string {
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, Mask)
		}
	}
	return msg
}
