package logpipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(t.TempDir(), "cfg-1", "app-1")
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestAttachCapturesStdoutAndStderr(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("hello\nworld\n"), strings.NewReader("oops\n"))

	var entries []string
	require.Eventually(t, func() bool {
		out, err := p.Tail(100, "")
		require.NoError(t, err)
		entries = nil
		for _, e := range out {
			entries = append(entries, e.Stream+":"+e.Text)
		}
		return len(entries) == 3
	}, time.Second, 10*time.Millisecond)

	require.Contains(t, entries, "stdout:hello")
	require.Contains(t, entries, "stdout:world")
	require.Contains(t, entries, "stderr:oops")
}

func TestTailLimitsToN(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("a\nb\nc\nd\n"), nil)

	require.Eventually(t, func() bool {
		out, _ := p.Tail(100, "")
		return len(out) == 4
	}, time.Second, 10*time.Millisecond)

	out, err := p.Tail(2, "")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "c", out[0].Text)
	require.Equal(t, "d", out[1].Text)
}

func TestTailOfMissingRunReturnsEmpty(t *testing.T) {
	p := newTestPipeline(t)
	out, err := p.Tail(10, "2000-01-01-00-00-00")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestArchiveRotatesCurrentLogAndListsRuns(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("run1-line\n"), nil)
	require.Eventually(t, func() bool {
		out, _ := p.Tail(100, "")
		return len(out) == 1
	}, time.Second, 10*time.Millisecond)

	runID := "2024-01-01-00-00-00"
	require.NoError(t, p.Archive(runID))

	runs := p.ListRuns()
	require.Len(t, runs, 1)
	require.Equal(t, runID, runs[0].RunID)

	out, err := p.Tail(10, runID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "run1-line", out[0].Text)

	current, err := p.Tail(10, "")
	require.NoError(t, err)
	require.Empty(t, current)
}

func TestArchiveTrimsBeyondRetention(t *testing.T) {
	p := newTestPipeline(t)
	p.SetRetention(2)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Archive(time.Now().UTC().Add(time.Duration(i)*time.Second).Format(runIDLayout)))
	}
	require.Len(t, p.ListRuns(), 2)
}

func TestSearchFindsMatchWithContext(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("before\nTARGET line\nafter\n"), nil)
	require.Eventually(t, func() bool {
		out, _ := p.Tail(100, "")
		return len(out) == 3
	}, time.Second, 10*time.Millisecond)

	matches := p.Search("target", 10, false)
	require.Len(t, matches, 1)
	require.Equal(t, "TARGET line", matches[0].Text)
	require.Equal(t, "before", matches[0].Before)
	require.Equal(t, "after", matches[0].After)
}

func TestSearchCaseSensitiveMissesDifferentCase(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("TARGET line\n"), nil)
	require.Eventually(t, func() bool {
		out, _ := p.Tail(100, "")
		return len(out) == 1
	}, time.Second, 10*time.Millisecond)

	require.Empty(t, p.Search("target", 10, true))
	require.Len(t, p.Search("TARGET", 10, true), 1)
}

func TestSearchFallsBackToLiteralOnInvalidRegex(t *testing.T) {
	p := newTestPipeline(t)
	p.Attach(strings.NewReader("weird [unclosed bracket\n"), nil)
	require.Eventually(t, func() bool {
		out, _ := p.Tail(100, "")
		return len(out) == 1
	}, time.Second, 10*time.Millisecond)

	matches := p.Search("[unclosed", 10, true)
	require.Len(t, matches, 1)
}

func TestNewRunIDMatchesLayout(t *testing.T) {
	id := NewRunID()
	_, err := time.Parse(runIDLayout, id)
	require.NoError(t, err)
}
