package prof

import "fmt"

// Deserializer parses one log file and populates a State through the
// callbacks obtained from it. Implementations must release the file handle
// on every exit path and must fail on truncated or malformed input rather
// than leave a silently incomplete State.
type Deserializer interface {
	Parse(path string, opts ParseOptions) error
}

// ParseOptions is pass-through configuration for a parse run.
type ParseOptions struct {
	// Verbose enables per-record debug logging during the parse. It has no
	// effect on the resulting State.
	Verbose bool

	// VisibleNodes restricts ingestion to records belonging to the given
	// nodes. Nil means no restriction.
	VisibleNodes NodeSet

	// FilterInput, when non-nil, drops every record for which it returns
	// false. Nil means no filter.
	FilterInput func(Record) bool
}

// admits applies the node and input filters to a decoded record.
func (o ParseOptions) admits(r Record) bool {
	if o.FilterInput != nil && !o.FilterInput(r) {
		return false
	}
	if o.VisibleNodes != nil {
		if node, ok := recordNode(r); ok && !o.VisibleNodes.Contains(node) {
			return false
		}
	}
	return true
}

// Constructor creates a Deserializer bound to a State.
type Constructor func(*State) Deserializer

var registry = map[FileType]Constructor{}

// RegisterDeserializer adds a deserializer constructor for a file type.
func RegisterDeserializer(ft FileType, ctor Constructor) {
	registry[ft] = ctor
}

// NewDeserializer returns a deserializer for the detected file type, bound
// to the given State.
func NewDeserializer(ft FileType, s *State) (Deserializer, error) {
	ctor, ok := registry[ft]
	if !ok {
		return nil, fmt.Errorf("no deserializer for %s log format", ft)
	}
	return ctor(s), nil
}

func errUnknownRecord(r Record) error {
	return fmt.Errorf("unknown record kind %v", r.Kind())
}
