// Package logpipeline implements the per-application Log Pipeline
// (spec.md §4.3): concurrent stdout/stderr capture into current.log with a
// bounded drop-and-sentinel buffer, run-id archiving with retention, tail,
// and regex search with context lines. Grounded in original_source's
// log_manager.py (get_log_path/start_logging/search_logs/_archive_current_log)
// with the wire format spec.md §6 specifies rather than log_manager.py's
// bracketed variant.
package logpipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/metrics"
)

const (
	queueCapacity   = 4096
	defaultRetain   = 10
	timestampLayout = "2006-01-02T15:04:05.000Z"
	runIDLayout     = "2006-01-02-15-04-05"
)

type logLine struct {
	ts     time.Time
	stream string
	text   string
}

// archiveRequest asks the drain goroutine to flush whatever is still queued
// from the run about to be archived before swapping in a fresh current.log,
// so no line from the old run is ever written to the new one.
type archiveRequest struct {
	runID string
	resp  chan error
}

// Pipeline is the per-application log singleton, created at first spawn.
type Pipeline struct {
	dir             string
	configID, appID string
	retention       int

	mu      sync.Mutex
	current *os.File
	lastTS  time.Time

	queue   chan logLine
	dropped int

	archiveCh chan archiveRequest

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Pipeline rooted at D/logs/<config_id>/<app_id>.
func New(dataDir, configID, appID string) (*Pipeline, error) {
	dir := filepath.Join(dataDir, "logs", configID, appID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	p := &Pipeline{
		dir:       dir,
		configID:  configID,
		appID:     appID,
		retention: defaultRetain,
		queue:     make(chan logLine, queueCapacity),
		archiveCh: make(chan archiveRequest),
		done:      make(chan struct{}),
	}
	f, err := os.OpenFile(filepath.Join(dir, "current.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open current.log: %w", err)
	}
	p.current = f
	p.wg.Add(1)
	go p.drain()
	return p, nil
}

// SetRetention overrides the default archive retention count (default 10).
func (p *Pipeline) SetRetention(n int) {
	if n > 0 {
		p.retention = n
	}
}

// Attach begins consuming stdout and stderr concurrently. Each stream keeps
// its own line order; interleaving between streams is best-effort.
func (p *Pipeline) Attach(stdout, stderr io.Reader) {
	if stdout != nil {
		p.wg.Add(1)
		go p.consume(stdout, "stdout")
	}
	if stderr != nil {
		p.wg.Add(1)
		go p.consume(stderr, "stderr")
	}
}

func (p *Pipeline) consume(r io.Reader, stream string) {
	defer p.wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.push(logLine{ts: time.Now().UTC(), stream: stream, text: sc.Text()})
	}
}

// push enqueues line, dropping the oldest queued line and counting the drop
// when the bounded buffer is full, rather than blocking the child's stdio.
func (p *Pipeline) push(line logLine) {
	for {
		select {
		case p.queue <- line:
			return
		default:
		}
		select {
		case <-p.queue:
			p.mu.Lock()
			p.dropped++
			p.mu.Unlock()
		default:
		}
	}
}

func (p *Pipeline) drain() {
	defer p.wg.Done()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-p.queue:
			if !ok {
				p.flushDropSentinel()
				return
			}
			p.writeLine(line.ts, line.stream, line.text)
		case req := <-p.archiveCh:
			req.resp <- p.archiveLocked(req.runID)
		case <-ticker.C:
			p.flushDropSentinel()
		case <-p.done:
			// Drain whatever remains without blocking further.
			for {
				select {
				case line, ok := <-p.queue:
					if !ok {
						p.flushDropSentinel()
						return
					}
					p.writeLine(line.ts, line.stream, line.text)
				default:
					p.flushDropSentinel()
					return
				}
			}
		}
	}
}

// drainQueue writes every line currently sitting in the queue to whichever
// file p.current points at, without blocking on new arrivals. The drain
// goroutine is the queue's only consumer, so calling this from within drain
// itself (archive request handling) cannot race with the normal read case.
func (p *Pipeline) drainQueue() {
	for {
		select {
		case line, ok := <-p.queue:
			if !ok {
				return
			}
			p.writeLine(line.ts, line.stream, line.text)
		default:
			return
		}
	}
}

func (p *Pipeline) flushDropSentinel() {
	p.mu.Lock()
	n := p.dropped
	p.dropped = 0
	p.mu.Unlock()
	if n > 0 {
		p.writeLine(time.Now().UTC(), "meta", fmt.Sprintf("[log-pipeline: %d lines dropped]", n))
		metrics.IncDroppedLogLines(p.configID, p.appID, n)
	}
}

// writeLine formats and appends one entry to current.log, enforcing a
// monotonically non-decreasing timestamp per file.
func (p *Pipeline) writeLine(ts time.Time, stream, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lastTS.IsZero() && !ts.After(p.lastTS) {
		ts = p.lastTS.Add(time.Millisecond)
	}
	p.lastTS = ts
	line := fmt.Sprintf("%s %s %s\n", ts.Format(timestampLayout), stream, text)
	if p.current != nil {
		_, _ = p.current.WriteString(line)
	}
}

// Archive renames current.log to <run_id>.log, opens a fresh current.log,
// and trims archives beyond the retention count. The swap itself runs on
// the drain goroutine so every line already queued for the run being
// archived lands in <run_id>.log rather than leaking into the new file.
func (p *Pipeline) Archive(runID string) error {
	req := archiveRequest{runID: runID, resp: make(chan error, 1)}
	select {
	case p.archiveCh <- req:
		return <-req.resp
	case <-p.done:
		return fmt.Errorf("archive current.log: pipeline closed")
	}
}

// archiveLocked performs the actual file swap. Called only from drain, so it
// first flushes the queue into the file being archived before touching
// p.current, then holds p.mu for the swap like writeLine does.
func (p *Pipeline) archiveLocked(runID string) error {
	p.drainQueue()
	p.flushDropSentinel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		_ = p.current.Close()
	}
	curPath := filepath.Join(p.dir, "current.log")
	if _, err := os.Stat(curPath); err == nil {
		if err := os.Rename(curPath, filepath.Join(p.dir, runID+".log")); err != nil {
			return fmt.Errorf("archive current.log: %w", err)
		}
	}
	f, err := os.OpenFile(curPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("reopen current.log: %w", err)
	}
	p.current = f
	p.lastTS = time.Time{}
	p.trimLocked()
	return nil
}

func (p *Pipeline) trimLocked() {
	runs := p.listArchivesLocked()
	if len(runs) <= p.retention {
		return
	}
	for _, r := range runs[p.retention:] {
		_ = os.Remove(filepath.Join(p.dir, r.name+".log"))
	}
}

type archiveInfo struct {
	name    string
	size    int64
	modTime time.Time
}

// listArchivesLocked must be called with p.mu held; returns archives
// newest-first by parsed run id, falling back to mtime.
func (p *Pipeline) listArchivesLocked() []archiveInfo {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil
	}
	var out []archiveInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "current.log" || !strings.HasSuffix(name, ".log") {
			continue
		}
		runID := strings.TrimSuffix(name, ".log")
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, archiveInfo{name: runID, size: fi.Size(), modTime: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, erri := time.Parse(runIDLayout, out[i].name)
		tj, errj := time.Parse(runIDLayout, out[j].name)
		if erri == nil && errj == nil {
			return ti.After(tj)
		}
		return out[i].modTime.After(out[j].modTime)
	})
	return out
}

// NewRunID returns a run identifier suitable for Archive: the current UTC
// instant formatted as YYYY-MM-DD-HH-MM-SS (spec.md §6).
func NewRunID() string { return time.Now().UTC().Format(runIDLayout) }

// Close stops the drain goroutine and flushes any pending lines.
func (p *Pipeline) Close() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	p.mu.Lock()
	if p.current != nil {
		_ = p.current.Close()
		p.current = nil
	}
	p.mu.Unlock()
}
