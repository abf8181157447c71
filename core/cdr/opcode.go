// Package cdr implements the Common Data Representation codec: the
// execution engine that serializes, deserializes, normalizes, extracts
// keys from, and prints Go values according to a compiled type
// descriptor. The descriptor is built once per Go type (via reflection
// driven by `dds:"..."` struct tags) into a Program — the Go-idiomatic
// analogue of the opcode stream a code-generated IDL compiler would
// otherwise emit, since no IDL compiler exists in this repository.
package cdr

// Kind names the role a Node plays, preserving the opcode vocabulary
// the wire format is built from even though the Go implementation is a
// typed tree rather than a flat instruction array.
type Kind uint8

const (
	ADR      Kind = iota // address-of-field: emit/parse a leaf or container at an offset
	JSR                  // jump to subroutine: descend into a nested struct/extension program
	RTS                  // return from subroutine: implicit at the end of every Node walk
	JEQ                  // union case: discriminant-matched branch
	KOF                  // key-offset list entry (key-descriptor table)
	DLC                  // delimited-container header (appendable extensibility)
	PLC                  // parameter-list container header (mutable extensibility)
	PLM                  // parameter-list member entry
	XCDR2DLH             // delimited-container length header emission
)

// Subtype names the element type a Node addresses.
type Subtype uint8

const (
	S1BY Subtype = iota
	S2BY
	S4BY
	S8BY
	SSTR // unbounded string
	SBST // bounded string
	SSEQ
	SARR
	SUNI
	SSTU // struct
	SEXT // external/nested (recursive reference)
	SENU
)

// Flag is a bitset of per-field modifiers.
type Flag uint8

const (
	FlagSGN Flag = 1 << iota // signed integer
	FlagFP                   // floating point
	FlagKEY                  // field participates in the key
	FlagDEF                  // union default branch
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }
