package trace

import (
	"fmt"
	"strings"
)

// Render produces a human-readable, line-oriented rendering of the
// trace: call/return boundaries, variable changes, and exceptions, in
// program order. The output is deterministic for a given trace.
func (t *Trace) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "trace %s  events=%d", t.TraceID, t.EventCount)
	if t.Truncated {
		stages := make([]string, len(t.Elisions))
		for i, s := range t.Elisions {
			stages[i] = string(s)
		}
		fmt.Fprintf(&sb, "  truncated(%s)", strings.Join(stages, ","))
	}
	sb.WriteString("\n")

	// A run that died in an exception leads with it, before the detail.
	for _, root := range t.Roots {
		if exc := root.Raised(); exc != nil {
			fmt.Fprintf(&sb, "FAILED  %s !! %s: %s\n", root.Name, exc.Type, exc.Message)
		}
	}

	for i, root := range t.Roots {
		if len(t.Roots) > 1 {
			fmt.Fprintf(&sb, "--- goroutine %d ---\n", i+1)
		}
		renderRecord(&sb, root, 0)
	}

	return sb.String()
}

func renderRecord(sb *strings.Builder, rec *CallRecord, depth int) {
	pad := strings.Repeat("  ", depth)

	loc := ""
	if rec.Entry != nil && rec.Entry.Loc.File != "" {
		loc = fmt.Sprintf("  %s:%d", rec.Entry.Loc.File, rec.Entry.Loc.Line)
	}
	fmt.Fprintf(sb, "%scall    %s%s\n", pad, rec.Name, loc)

	for _, node := range mergeBySeq(rec) {
		if node.child != nil {
			renderRecord(sb, node.child, depth+1)
			continue
		}
		renderEvent(sb, node.event, pad+"  ")
	}

	switch {
	case rec.Unterminated:
		fmt.Fprintf(sb, "%sunterminated %s\n", pad, rec.Name)
	case rec.Raised() != nil:
		exc := rec.Raised()
		fmt.Fprintf(sb, "%sraise   %s !! %s: %s\n", pad, rec.Name, exc.Type, exc.Message)
	default:
		fmt.Fprintf(sb, "%sreturn  %s -> %s  (%s)\n", pad, rec.Name, rec.ReturnValue(), rec.Duration)
	}
}

func renderEvent(sb *strings.Builder, ev *Event, pad string) {
	switch ev.Kind {
	case EventLineExecuted:
		fmt.Fprintf(sb, "%sline    %s:%d\n", pad, ev.Loc.File, ev.Loc.Line)
	case EventVariableChanged:
		fmt.Fprintf(sb, "%svar     %s = %s\n", pad, ev.Var.Name, ev.Var.Value)
	case EventExceptionRaised:
		fmt.Fprintf(sb, "%sexc     %s: %s\n", pad, ev.Exc.Type, ev.Exc.Message)
	}
}

// renderNode is one chronological entry inside a record: either a
// direct event or a nested call.
type renderNode struct {
	seq   uint64
	event *Event
	child *CallRecord
}

// mergeBySeq interleaves a record's direct events and nested calls back
// into program order using sequence numbers.
func mergeBySeq(rec *CallRecord) []renderNode {
	nodes := make([]renderNode, 0, len(rec.Events)+len(rec.Children))
	for _, ev := range rec.Events {
		nodes = append(nodes, renderNode{seq: ev.Seq, event: ev})
	}
	for _, c := range rec.Children {
		seq := uint64(0)
		if c.Entry != nil {
			seq = c.Entry.Seq
		}
		nodes = append(nodes, renderNode{seq: seq, child: c})
	}

	// Both inputs are already sorted; a simple insertion pass keeps it
	// stable without pulling in sort for two-way merges.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].seq < nodes[j-1].seq; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
	return nodes
}
