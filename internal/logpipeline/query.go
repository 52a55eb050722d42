package logpipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Tail returns up to n trailing entries from the given run (default:
// "current"). Reads tolerate concurrent writers since files are opened
// read-only and scanned independently of the writer's handle.
func (p *Pipeline) Tail(n int, runID string) ([]appmodel.LogEntry, error) {
	if runID == "" {
		runID = "current"
	}
	path := p.fileForRun(runID)
	lines, err := readAllLines(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]appmodel.LogEntry, 0, len(lines))
	for _, l := range lines {
		if e, ok := parseLine(l); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Pipeline) fileForRun(runID string) string {
	if runID == "current" || runID == "" {
		return filepath.Join(p.dir, "current.log")
	}
	return filepath.Join(p.dir, runID+".log")
}

func readAllLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, nil
}

func parseLine(line string) (appmodel.LogEntry, bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return appmodel.LogEntry{}, false
	}
	ts, err := time.Parse(timestampLayout, parts[0])
	if err != nil {
		return appmodel.LogEntry{}, false
	}
	return appmodel.LogEntry{Timestamp: ts, Stream: parts[1], Text: parts[2]}, true
}

// ListRuns returns archive metadata newest-first.
func (p *Pipeline) ListRuns() []appmodel.LogRunInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	archives := p.listArchivesLocked()
	out := make([]appmodel.LogRunInfo, 0, len(archives))
	for _, a := range archives {
		out = append(out, appmodel.LogRunInfo{RunID: a.name, SizeBytes: a.size, ModifiedAt: a.modTime})
	}
	return out
}

// Search compiles pattern as a regex (falling back to a literal substring
// match if compilation fails) and scans current.log plus every archive,
// newest-first, returning up to maxResults matches with one line of context
// before and after.
func (p *Pipeline) Search(pattern string, maxResults int, caseSensitive bool) []appmodel.SearchMatch {
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	literal := err != nil

	files := p.searchOrderLocked()

	var out []appmodel.SearchMatch
	for _, file := range files {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		lines, rerr := readAllLines(file)
		if rerr != nil || len(lines) == 0 {
			continue
		}
		base := filepath.Base(file)
		for i, l := range lines {
			if maxResults > 0 && len(out) >= maxResults {
				break
			}
			entry, ok := parseLine(l)
			if !ok {
				continue
			}
			matched := false
			if literal {
				hay, needle := entry.Text, pattern
				if !caseSensitive {
					hay, needle = strings.ToLower(hay), strings.ToLower(needle)
				}
				matched = strings.Contains(hay, needle)
			} else {
				matched = re.MatchString(entry.Text)
			}
			if !matched {
				continue
			}
			m := appmodel.SearchMatch{File: base, Line: i + 1, Timestamp: entry.Timestamp, Text: entry.Text}
			if i > 0 {
				if e, ok := parseLine(lines[i-1]); ok {
					m.Before = e.Text
				}
			}
			if i+1 < len(lines) {
				if e, ok := parseLine(lines[i+1]); ok {
					m.After = e.Text
				}
			}
			out = append(out, m)
		}
	}
	return out
}

// searchOrderLocked returns current.log followed by archives newest-first.
func (p *Pipeline) searchOrderLocked() []string {
	p.mu.Lock()
	archives := p.listArchivesLocked()
	p.mu.Unlock()
	files := []string{filepath.Join(p.dir, "current.log")}
	for _, a := range archives {
		files = append(files, filepath.Join(p.dir, a.name+".log"))
	}
	return files
}
