package localconf

import (
	"bytes"
	"io"
	"strings"
)

// SectionHeader is the single local.conf section the installer reads settings from
const SectionHeader = "[[local|localrc]]"

// RedactedValue replaces secret values in Redacted output
const RedactedValue = "******"

// Setting is one KEY=value line
type Setting struct {
	Key    string
	Value  string
	Secret bool
}

// Toggle is one enable_service or disable_service directive
type Toggle struct {
	Service string
	Enabled bool
}

// Document is an ordered local.conf. Keys keep their first position when
// overwritten; a service toggled twice moves to the end so the rendered
// order is the effective order.
type Document struct {
	settings []Setting
	index    map[string]int
	toggles  []Toggle
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Set stores a plain setting
func (d *Document) Set(key, value string) {
	d.set(Setting{Key: key, Value: value})
}

// SetSecret stores a setting that is masked by Redacted
func (d *Document) SetSecret(key, value string) {
	d.set(Setting{Key: key, Value: value, Secret: true})
}

func (d *Document) set(s Setting) {
	if i, ok := d.index[s.Key]; ok {
		d.settings[i] = s
		return
	}
	d.index[s.Key] = len(d.settings)
	d.settings = append(d.settings, s)
}

// Get returns the value stored for key
func (d *Document) Get(key string) (string, bool) {
	i, ok := d.index[key]
	if !ok {
		return "", false
	}
	return d.settings[i].Value, true
}

// Enable appends enable directives for services
func (d *Document) Enable(services ...string) {
	for _, s := range services {
		d.toggle(s, true)
	}
}

// Disable appends disable directives for services
func (d *Document) Disable(services ...string) {
	for _, s := range services {
		d.toggle(s, false)
	}
}

func (d *Document) toggle(service string, enabled bool) {
	for i, t := range d.toggles {
		if t.Service == service {
			d.toggles = append(d.toggles[:i], d.toggles[i+1:]...)
			break
		}
	}
	d.toggles = append(d.toggles, Toggle{Service: service, Enabled: enabled})
}

// Enabled reports the effective state of a service and whether it was toggled at all
func (d *Document) Enabled(service string) (enabled, toggled bool) {
	for _, t := range d.toggles {
		if t.Service == service {
			return t.Enabled, true
		}
	}
	return false, false
}

// Settings returns a copy of the settings in render order
func (d *Document) Settings() []Setting {
	out := make([]Setting, len(d.settings))
	copy(out, d.settings)
	return out
}

// Toggles returns a copy of the toggles in render order
func (d *Document) Toggles() []Toggle {
	out := make([]Toggle, len(d.toggles))
	copy(out, d.toggles)
	return out
}

// Secrets returns the distinct non-empty secret values
func (d *Document) Secrets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range d.settings {
		if s.Secret && s.Value != "" && !seen[s.Value] {
			seen[s.Value] = true
			out = append(out, s.Value)
		}
	}
	return out
}

// Render serializes the document
func (d *Document) Render() []byte {
	var buf bytes.Buffer
	d.write(&buf, false)
	return buf.Bytes()
}

// Redacted renders the document with secret values masked
func (d *Document) Redacted() string {
	var buf bytes.Buffer
	d.write(&buf, true)
	return buf.String()
}

// WriteTo writes the rendered document to w
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Render())
	return int64(n), err
}

func (d *Document) write(buf *bytes.Buffer, redact bool) {
	buf.WriteString(SectionHeader)
	buf.WriteByte('\n')
	for _, s := range d.settings {
		value := quote(s.Value)
		if redact && s.Secret {
			value = RedactedValue
		}
		buf.WriteString(s.Key)
		buf.WriteByte('=')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	if len(d.toggles) > 0 {
		buf.WriteByte('\n')
	}
	for _, t := range d.toggles {
		if t.Enabled {
			buf.WriteString("enable_service ")
		} else {
			buf.WriteString("disable_service ")
		}
		buf.WriteString(t.Service)
		buf.WriteByte('\n')
	}
}

// quote single-quotes values that the shell would otherwise split or expand
func quote(v string) string {
	if v == "" {
		return "''"
	}
	safe := true
	for _, r := range v {
		if !isSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_.,:/=@+%", r)
}
