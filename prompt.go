package tracetalk

import (
	"fmt"
	"strings"

	"github.com/tracetalk/tracetalk/trace"
)

const promptPreamble = `You are a debugging assistant. Below is the execution trace of a program:
call/return boundaries, variable changes in chronological order, and any
raised exceptions. Answer the user's question about what happened during
this execution. Base your answer only on the trace.`

// elisionNotes explains to the model what each elision stage removed,
// so truncated traces are never presented as complete.
var elisionNotes = map[trace.ElisionStage]string{
	trace.ElideRepeatedVars: "repeated identical variable values were collapsed to the last occurrence",
	trace.ElideIdleLines:    "line-execution events without state changes were dropped",
	trace.ElideDeepCalls:    "the deepest nested calls were dropped entirely",
	trace.ElideOldestEvents: "the oldest remaining events were dropped, keeping each variable's final value",
}

// renderPrompt renders the trace and question into one provider-neutral
// prompt. Prior conversation turns travel separately as structured
// history messages. The output is deterministic for a given trace and
// question.
func renderPrompt(tr *trace.Trace, question string) string {
	var sb strings.Builder

	sb.WriteString(promptPreamble)
	sb.WriteString("\n\n=== EXECUTION TRACE ===\n")
	sb.WriteString(tr.Render())

	if tr.Truncated {
		sb.WriteString("\nNOTE: this trace exceeded its size budget and was truncated:\n")
		for _, stage := range tr.Elisions {
			if note, ok := elisionNotes[stage]; ok {
				fmt.Fprintf(&sb, "- %s\n", note)
			}
		}
	}

	sb.WriteString("\n=== QUESTION ===\n")
	sb.WriteString(question)

	return sb.String()
}
