package health

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTailLines is how much of each log is scanned
const DefaultTailLines = 500

// DefaultLogPatterns mark a log line as a problem
var DefaultLogPatterns = []string{"ERROR", "Traceback"}

// LogChecker scans the tail of every *.log in Dir for error patterns
type LogChecker struct {
	Dir      string
	Lines    int
	Patterns []string
}

// NewLogChecker creates a checker with the default tail size and patterns
func NewLogChecker(dir string) *LogChecker {
	return &LogChecker{Dir: dir, Lines: DefaultTailLines, Patterns: DefaultLogPatterns}
}

// Check is unhealthy when the directory is missing or any tail matches
func (l *LogChecker) Check(ctx context.Context) Result {
	start := time.Now()

	files, err := l.files()
	if err != nil {
		return result(start, false, "cannot scan %s: %v", l.Dir, err)
	}
	if len(files) == 0 {
		return result(start, true, "no log files in %s", l.Dir)
	}

	var hits []string
	for _, f := range files {
		if ctx.Err() != nil {
			return result(start, false, "log scan interrupted: %v", ctx.Err())
		}
		n, err := l.scan(f)
		if err != nil {
			hits = append(hits, fmt.Sprintf("%s: %v", filepath.Base(f), err))
			continue
		}
		if n > 0 {
			hits = append(hits, fmt.Sprintf("%s: %d matching lines", filepath.Base(f), n))
		}
	}

	if len(hits) > 0 {
		return result(start, false, "%s", strings.Join(hits, "; "))
	}
	return result(start, true, "%d log files clean", len(files))
}

// Type returns the health check type
func (l *LogChecker) Type() CheckType {
	return CheckTypeLogs
}

// files returns *.log in Dir with symlinks resolved and duplicates removed
func (l *LogChecker) files() ([]string, error) {
	if _, err := os.Stat(l.Dir); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(l.Dir, "*.log"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		real, err := filepath.EvalSymlinks(m)
		if err != nil || seen[real] {
			continue
		}
		seen[real] = true
		out = append(out, real)
	}
	sort.Strings(out)
	return out, nil
}

func (l *LogChecker) scan(path string) (int, error) {
	lines, err := tail(path, l.Lines)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, line := range lines {
		for _, p := range l.Patterns {
			if bytes.Contains(line, []byte(p)) {
				n++
				break
			}
		}
	}
	return n, nil
}

// tail returns at most n final lines, reading backwards in blocks
func tail(path string, n int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	const block = 64 << 10
	size := info.Size()
	var buf []byte
	for offset := size; offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n; {
		read := int64(block)
		if offset < read {
			read = offset
		}
		offset -= read
		chunk := make([]byte, read)
		if _, err := f.ReadAt(chunk, offset); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	lines := bytes.Split(bytes.TrimRight(buf, "\n"), []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
