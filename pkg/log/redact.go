package log

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Mask replaces secret values in every log line
const Mask = "******"

var (
	secretsMu sync.RWMutex
	secrets   [][]byte
)

// RegisterSecret makes every later log line mask s. Empty values are ignored.
// Log events are matched after encoding, so the JSON-escaped form of s is
// registered alongside the raw one.
func RegisterSecret(s string) {
	if s == "" {
		return
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	add := func(v string) {
		for _, existing := range secrets {
			if string(existing) == v {
				return
			}
		}
		secrets = append(secrets, []byte(v))
	}
	add(s)
	if escaped := jsonEscape(s); escaped != s {
		add(escaped)
	}
}

// jsonEscape mirrors how zerolog escapes string values inside an event
func jsonEscape(s string) string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\b':
			b.WriteString(`\b`)
		case c == '\f':
			b.WriteString(`\f`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ResetSecrets forgets every registered secret
func ResetSecrets() {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	secrets = nil
}

// Redact masks every registered secret in s
func Redact(s string) string {
	return string(redact([]byte(s)))
}

func redact(p []byte) []byte {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	for _, s := range secrets {
		if bytes.Contains(p, s) {
			p = bytes.ReplaceAll(p, s, []byte(Mask))
		}
	}
	return p
}

// redactWriter masks secrets before they reach any log sink
type redactWriter struct {
	out zerolog.LevelWriter
}

func (w *redactWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(redact(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *redactWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if _, err := w.out.WriteLevel(level, redact(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewRedactingWriter wraps an arbitrary writer, e.g. installer output
func NewRedactingWriter(w io.Writer) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if _, err := w.Write(redact(p)); err != nil {
			return 0, err
		}
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
