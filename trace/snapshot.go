package trace

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Placeholder is substituted for any value that cannot be rendered
// safely. Snapshot capture is degraded, never fatal.
const Placeholder = "<unrenderable>"

const (
	defaultSnapshotLen = 512
	snapshotMaxDepth   = 3
	snapshotMaxElems   = 16
)

// Renderable lets a type control its own snapshot text. Types that hold
// sensitive or very large state can implement it to bound what the
// trace (and therefore the AI backend) sees.
type Renderable interface {
	RenderSnapshot() string
}

// Snapshot renders a runtime value to a bounded textual form. It never
// panics; values that fail to render degrade to Placeholder.
func Snapshot(v any, maxLen int) (s string) {
	if maxLen <= 0 {
		maxLen = defaultSnapshotLen
	}

	defer func() {
		if recover() != nil {
			s = Placeholder
		}
	}()

	if r, ok := v.(Renderable); ok {
		return clip(r.RenderSnapshot(), maxLen)
	}

	return clip(render(reflect.ValueOf(v), snapshotMaxDepth), maxLen)
}

// clip bounds s to maxLen bytes, cutting on a rune boundary so the
// result stays valid UTF-8 for rendering and JSON export.
func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// render walks the value reflectively with a depth bound. It avoids
// calling user-defined methods (String, Error) so a panicking
// implementation cannot take the whole snapshot down with it; the
// recover in Snapshot is the hard fallback.
func render(rv reflect.Value, depth int) string {
	if !rv.IsValid() {
		return "nil"
	}
	if depth <= 0 {
		return "..."
	}

	switch rv.Kind() {
	case reflect.String:
		return strconv.Quote(rv.String())

	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)

	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)

	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)

	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", rv.Complex())

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return render(rv.Elem(), depth)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "nil"
		}
		var sb strings.Builder
		sb.WriteString("[")
		n := rv.Len()
		for i := 0; i < n && i < snapshotMaxElems; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(render(rv.Index(i), depth-1))
		}
		if n > snapshotMaxElems {
			fmt.Fprintf(&sb, ", ...+%d", n-snapshotMaxElems)
		}
		sb.WriteString("]")
		return sb.String()

	case reflect.Map:
		if rv.IsNil() {
			return "nil"
		}
		keys := rv.MapKeys()
		rendered := make([]string, 0, len(keys))
		for _, k := range keys {
			rendered = append(rendered, render(k, depth-1)+": "+render(rv.MapIndex(k), depth-1))
		}
		// Map iteration order is random; sort for deterministic snapshots.
		sort.Strings(rendered)
		if len(rendered) > snapshotMaxElems {
			rendered = append(rendered[:snapshotMaxElems], fmt.Sprintf("...+%d", len(keys)-snapshotMaxElems))
		}
		return "{" + strings.Join(rendered, ", ") + "}"

	case reflect.Struct:
		var sb strings.Builder
		sb.WriteString(rv.Type().Name())
		sb.WriteString("{")
		wrote := false
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			if wrote {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(render(rv.Field(i), depth-1))
			wrote = true
		}
		sb.WriteString("}")
		return sb.String()

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "<" + rv.Type().String() + ">"

	default:
		return Placeholder
	}
}

// snapshotErr renders an exception-like value (an error or a recovered
// panic value) into ExcData.
func snapshotErr(v any, maxLen int) *ExcData {
	if v == nil {
		return &ExcData{Type: "nil", Message: ""}
	}
	exc := &ExcData{Type: fmt.Sprintf("%T", v)}
	if err, ok := v.(error); ok {
		exc.Message = clip(safeErrMsg(err), maxLen)
	} else {
		exc.Message = Snapshot(v, maxLen)
	}
	return exc
}

func safeErrMsg(err error) (s string) {
	defer func() {
		if recover() != nil {
			s = Placeholder
		}
	}()
	return err.Error()
}
