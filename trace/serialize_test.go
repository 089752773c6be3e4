package trace_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/tracetalk/tracetalk/trace"
)

func buildSampleTrace(t *testing.T) *trace.Trace {
	t.Helper()

	b := trace.NewBuilder(trace.WithMaxEvents(6))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.setVar("x", "1")))
	gt.NoError(t, b.Push(f.enter("helper")))
	gt.NoError(t, b.Push(f.setVar("y", "2")))
	gt.NoError(t, b.Push(f.setVar("y", "2")))
	gt.NoError(t, b.Push(f.setVar("y", "2")))
	gt.NoError(t, b.Push(f.exit("helper", "2")))
	gt.NoError(t, b.Push(f.exit("main", "done")))

	return gt.R1(b.Finalize()).NoError(t)
}

func TestSerializeRoundTrip(t *testing.T) {
	original := buildSampleTrace(t)

	var buf bytes.Buffer
	gt.NoError(t, original.Export(&buf))

	restored := gt.R1(trace.Load(&buf)).NoError(t)

	// Structural equality: identical call tree, flags and rendering.
	gt.Equal(t, restored.TraceID, original.TraceID)
	gt.Equal(t, restored.Truncated, original.Truncated)
	gt.Equal(t, restored.Elisions, original.Elisions)
	gt.Equal(t, restored.EventCount, original.EventCount)
	gt.Equal(t, len(restored.Roots), len(original.Roots))
	gt.Equal(t, restored.Render(), original.Render())
}

func TestSerializeRoundTripTruncated(t *testing.T) {
	original := buildSampleTrace(t)
	gt.B(t, original.Truncated).True()

	var buf bytes.Buffer
	gt.NoError(t, original.Export(&buf))

	restored := gt.R1(trace.Load(&buf)).NoError(t)
	gt.B(t, restored.Truncated).True()
	gt.Equal(t, restored.Elisions, []trace.ElisionStage{trace.ElideRepeatedVars})
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	doc := `{"format_version": 99, "trace": {"trace_id": "x", "roots": []}}`
	_, err := trace.Load(strings.NewReader(doc))
	gt.B(t, errors.Is(err, trace.ErrFormatVersion)).True()
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := trace.Load(strings.NewReader("not json"))
	gt.Error(t, err)
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	repo := trace.NewFileRepository(t.TempDir())
	original := buildSampleTrace(t)

	ctx := t.Context()
	gt.NoError(t, repo.Save(ctx, original))

	restored := gt.R1(repo.Load(ctx, original.TraceID)).NoError(t)
	gt.Equal(t, restored.Render(), original.Render())
}

func TestFileRepositoryMissingTrace(t *testing.T) {
	repo := trace.NewFileRepository(t.TempDir())
	_, err := repo.Load(t.Context(), "no-such-trace")
	gt.Error(t, err)
}
