package trace

import (
	"encoding/json"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

// FormatVersion is the current trace export format version. Loaders
// reject documents tagged with a version they do not support.
const FormatVersion = 1

type exportDoc struct {
	FormatVersion int    `json:"format_version"`
	Trace         *Trace `json:"trace"`
}

// Export writes the trace as a versioned JSON document.
func (t *Trace) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&exportDoc{FormatVersion: FormatVersion, Trace: t}); err != nil {
		return goerr.Wrap(err, "failed to encode trace", goerr.V("trace_id", t.TraceID))
	}
	return nil
}

// Load reads a trace exported by Export. A document with an unsupported
// format version fails with ErrFormatVersion naming both versions.
func Load(r io.Reader) (*Trace, error) {
	var doc exportDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode trace document")
	}
	if doc.FormatVersion != FormatVersion {
		return nil, goerr.Wrap(ErrFormatVersion, "cannot load trace document",
			goerr.V("document", doc.FormatVersion), goerr.V("supported", FormatVersion))
	}
	if doc.Trace == nil {
		return nil, goerr.New("trace document has no trace")
	}
	return doc.Trace, nil
}
