package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/template"
)

// stubRenderer writes a tiny placeholder file per render so archive and
// filename behavior can be exercised without a PDF pipeline.
type stubRenderer struct {
	mu       sync.Mutex
	rendered []string
	failFor  map[string]bool
}

func (s *stubRenderer) Render(rec template.Recipient, outputPath string) error {
	s.mu.Lock()
	s.rendered = append(s.rendered, filepath.Base(outputPath))
	s.mu.Unlock()

	if s.failFor[rec.FirstName] {
		return fmt.Errorf("render blew up for %s", rec.FirstName)
	}
	return os.WriteFile(outputPath, []byte("%PDF-stub "+rec.FirstName), 0o644)
}

func recipients(pairs ...[2]string) []template.Recipient {
	out := make([]template.Recipient, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, template.Recipient{FirstName: p[0], LastName: p[1]})
	}
	return out
}

func TestRunHappyPath(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
		[2]string{"Jane", "Roe"},
	), dir, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Total)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, "John_Doe.pdf", outcome.Results[0].Filename)
	assert.Equal(t, "Jane_Roe.pdf", outcome.Results[1].Filename)
	assert.FileExists(t, filepath.Join(dir, "John_Doe.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Jane_Roe.pdf"))
}

func TestRunResultsKeepInputOrder(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, Config{Parallel: true, MaxWorkers: 4}, zap.NewNop())

	var recs []template.Recipient
	for i := 0; i < 20; i++ {
		recs = append(recs, template.Recipient{
			FirstName: fmt.Sprintf("First%02d", i),
			LastName:  "Last",
		})
	}

	outcome, err := o.Run(context.Background(), recs, dir, nil)
	require.NoError(t, err)

	for i, res := range outcome.Results {
		assert.True(t, res.Success)
		assert.Equal(t, fmt.Sprintf("First%02d_Last.pdf", i), res.Filename)
	}
}

func TestRunBlankNamesFailFast(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	outcome, err := o.Run(context.Background(), []template.Recipient{
		{FirstName: "", LastName: "Doe"},
		{FirstName: "John", LastName: "Doe"},
		{FirstName: "Jane", LastName: "   "},
	}, dir, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 2, outcome.Failed)
	assert.Equal(t, "Missing first or last name", outcome.Results[0].Error)
	assert.Equal(t, "Missing first or last name", outcome.Results[2].Error)

	// Invalid recipients never reach the renderer.
	assert.Len(t, stub.rendered, 1)
}

func TestRunCollisionSuffixesFollowInputOrder(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, Config{Parallel: true, MaxWorkers: 8}, zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
		[2]string{"John", "Doe"},
		[2]string{"John", "Doe"},
	), dir, nil)

	require.NoError(t, err)
	assert.Equal(t, "John_Doe.pdf", outcome.Results[0].Filename)
	assert.Equal(t, "John_Doe_1.pdf", outcome.Results[1].Filename)
	assert.Equal(t, "John_Doe_2.pdf", outcome.Results[2].Filename)
}

func TestRunRendererFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{failFor: map[string]bool{"Bad": true}}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"Good", "One"},
		[2]string{"Bad", "Apple"},
		[2]string{"Also", "Fine"},
	), dir, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.False(t, outcome.Results[1].Success)
	assert.Contains(t, outcome.Results[1].Error, "render blew up")
}

func TestRunProgressCallbacks(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	var mu sync.Mutex
	var calls []string
	var finalCurrent, finalTotal int
	progress := func(current, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, message)
		finalCurrent, finalTotal = current, total
	}

	_, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
		[2]string{"Jane", "Roe"},
	), dir, progress)
	require.NoError(t, err)

	require.NotEmpty(t, calls)
	assert.Equal(t, "Complete!", calls[len(calls)-1])
	assert.Equal(t, 2, finalCurrent)
	assert.Equal(t, 2, finalTotal)
}

func TestRunPanickingProgressIsContained(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
	), dir, func(current, total int, message string) {
		panic("observer bug")
	})

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Succeeded)
}

func TestRunSequentialMode(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, Config{Parallel: false}, zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"A", "One"},
		[2]string{"B", "Two"},
		[2]string{"C", "Three"},
	), dir, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Succeeded)
	// One worker renders in dispatch order.
	assert.Equal(t, []string{"A_One.pdf", "B_Two.pdf", "C_Three.pdf"}, stub.rendered)
}

func TestRunSequentialModeAnnouncesBeforeRender(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, Config{Parallel: false}, zap.NewNop())

	type call struct {
		current int
		message string
	}
	var calls []call
	progress := func(current, total int, message string) {
		calls = append(calls, call{current, message})
	}

	_, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
		[2]string{"Jane", "Roe"},
	), dir, progress)
	require.NoError(t, err)

	var messages []string
	for _, c := range calls {
		messages = append(messages, c.message)
	}
	assert.Equal(t, []string{
		"Processing John Doe...",
		"Generated John_Doe.pdf",
		"Processing Jane Roe...",
		"Generated Jane_Roe.pdf",
		"Complete!",
	}, messages)

	// Announcements report work already completed; only finished units
	// advance the counter.
	assert.Equal(t, 0, calls[0].current)
	assert.Equal(t, 1, calls[1].current)
	assert.Equal(t, 1, calls[2].current)
	assert.Equal(t, 2, calls[3].current)
}

func TestRunSingleRecipientAnnouncesBeforeRender(t *testing.T) {
	dir := t.TempDir()
	stub := &stubRenderer{}
	o := NewOrchestrator(stub, DefaultConfig(), zap.NewNop())

	var messages []string
	_, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
	), dir, func(current, total int, message string) {
		messages = append(messages, message)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Processing John Doe...",
		"Generated John_Doe.pdf",
		"Complete!",
	}, messages)
}

func TestRunEmptyInput(t *testing.T) {
	o := NewOrchestrator(&stubRenderer{}, DefaultConfig(), zap.NewNop())

	var final string
	outcome, err := o.Run(context.Background(), nil, t.TempDir(), func(current, total int, message string) {
		final = message
	})

	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Total)
	assert.Equal(t, "Complete!", final)
}

func TestRunWithArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "certs.zip")
	stub := &stubRenderer{failFor: map[string]bool{"Bad": true}}

	cfg := DefaultConfig()
	cfg.ArchivePath = archive
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	outcome, err := o.Run(context.Background(), recipients(
		[2]string{"John", "Doe"},
		[2]string{"Bad", "Apple"},
	), dir, nil)

	require.NoError(t, err)
	assert.Equal(t, archive, outcome.ArchivePath)
	assert.FileExists(t, archive)
}
