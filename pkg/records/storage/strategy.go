package storage

// Representation is the physical encoding a record is written with.
type Representation int

const (
	// Columns writes one column per field
	Columns Representation = iota + 1
	// Document writes a single serialized document
	Document
	// Both writes columns and the document
	Both
)

func (r Representation) String() string {
	switch r {
	case Columns:
		return "columns"
	case Document:
		return "document"
	case Both:
		return "both"
	}
	return "unknown"
}

// WritesColumns reports whether the representation includes per-field columns.
func (r Representation) WritesColumns() bool {
	return r == Columns || r == Both
}

// WritesDocument reports whether the representation includes the document.
func (r Representation) WritesDocument() bool {
	return r == Document || r == Both
}

// Flags is one snapshot of the persistence configuration. Nil means unset.
type Flags struct {
	PersistAsDocument *bool
	PersistAsColumns  *bool
}

// FlagSource returns the current flags. It is called once per write.
type FlagSource func() Flags

// StaticFlags returns a FlagSource that always yields f.
func StaticFlags(f Flags) FlagSource {
	return func() Flags { return f }
}

// Capability describes what a backing store can hold.
type Capability interface {
	SupportsDocumentColumns() bool
}

// StrategyFor picks the representation for one write. Documents need a
// capable store and default on; columns default to the opposite of
// documents and are forced when documents are off.
func StrategyFor(flags Flags, capability Capability) Representation {
	doc := capability != nil && capability.SupportsDocumentColumns() && boolOr(flags.PersistAsDocument, true)
	cols := boolOr(flags.PersistAsColumns, !doc)
	if !doc {
		cols = true
	}
	switch {
	case doc && cols:
		return Both
	case doc:
		return Document
	default:
		return Columns
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
