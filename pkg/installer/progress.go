package installer

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/schollz/progressbar/v3"
)

const maxDescription = 60

// progress is a spinner fed by installer output lines
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, title string) *progress {
	if w == nil {
		return &progress{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &progress{bar: bar}
}

// Line advances the spinner and shows the latest output line
func (p *progress) Line(line string) {
	if p.bar == nil {
		return
	}
	line = strings.TrimSpace(log.Redact(line))
	if line == "" {
		return
	}
	if len(line) > maxDescription {
		line = line[:maxDescription-3] + "..."
	}
	p.bar.Describe(line)
	_ = p.bar.Add(1)
}

func (p *progress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// lineWriter buffers output and forwards each complete line to out and
// onLine with registered secrets masked. Secrets split across writes are
// therefore matched as a whole.
type lineWriter struct {
	mu     sync.Mutex
	out    io.Writer
	buf    bytes.Buffer
	onLine func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		if err := w.emit(string(w.buf.Next(i + 1))); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush emits a trailing partial line
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		_ = w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) error {
	line = log.Redact(line)
	if w.out != nil {
		if _, err := io.WriteString(w.out, line); err != nil {
			return err
		}
	}
	if w.onLine != nil {
		w.onLine(strings.TrimRight(line, "\r\n"))
	}
	return nil
}
