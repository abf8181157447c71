package cdr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Node is one compiled instruction: an ADR addressing a primitive or
// container, a JSR into a nested struct/union program, or a JEQ union
// case. A Program is simply its root Node.
type Node struct {
	Kind    Kind
	Subtype Subtype
	Flags   Flag

	// Struct / union fields, in declaration order.
	Fields []*Field

	// SEQ/ARR element program.
	Elem *Node
	ArrayLen int // SARR only

	// SBST bound, in bytes (0 means unbounded for SSTR).
	Bound int

	// SUNI discriminator field index (into the enclosing struct) and
	// per-case programs, keyed by the constant discriminant value.
	DiscIndex int
	Cases     map[int64]*Node
	Default   *Node

	// Appendable (DLC/XCDR2_DLH) or mutable (PLC/PLM) extensibility,
	// exclusive; neither set means "final" (no header).
	Appendable bool
	Mutable    bool
}

// Field is one struct member: its Go field index path and compiled Node.
type Field struct {
	Name      string
	Index     []int
	Node      *Node
	MemberID  int // PLM member id, assigned by declaration order unless tagged
	IsDisc    bool
}

// Program is the compiled form of a Go type, ready for Serialize,
// Deserialize, Normalize, ExtractKey, KeyHash and Print.
type Program struct {
	GoType reflect.Type
	Root   *Node
}

var (
	compileCache   = map[reflect.Type]*Program{}
	compileCacheMu sync.Mutex
)

// Compile builds (or returns the cached) Program for t. t must be a
// struct type, or a pointer to one. Self-referential and mutually
// recursive types are handled by registering each in-progress struct
// *Node in a per-call node cache (see compileStruct) before compiling its
// fields, so a nested reference to the same type reuses the same *Node
// pointer instead of recursing forever; the Program itself is cached only
// once compilation has finished
// (the same recursion guard encoding/json uses for its typeFields cache).
func Compile(t reflect.Type) (*Program, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cdr: Compile requires a struct type, got %s", t.Kind())
	}

	compileCacheMu.Lock()
	if p, ok := compileCache[t]; ok {
		compileCacheMu.Unlock()
		return p, nil
	}
	compileCacheMu.Unlock()

	nodeCache := map[reflect.Type]*Node{}
	root, err := compileStruct(t, nodeCache)
	if err != nil {
		return nil, err
	}
	prog := &Program{GoType: t, Root: root}

	compileCacheMu.Lock()
	compileCache[t] = prog
	compileCacheMu.Unlock()
	return prog, nil
}

// compileStruct compiles t's fields into a Node. cache maps a struct
// type already in progress to its (possibly still-being-filled) Node,
// so a self- or mutually-recursive reference to t reuses the same
// pointer instead of recursing forever; the pointee is only ever
// dereferenced later, at walk time, by which point compilation of the
// outermost Compile() call has completed and every Node is filled.
func compileStruct(t reflect.Type, cache map[reflect.Type]*Node) (*Node, error) {
	if existing, ok := cache[t]; ok {
		return existing, nil
	}
	node := &Node{Kind: JSR, Subtype: SSTU}
	cache[t] = node

	if isAppendable(t) {
		node.Appendable = true
	}
	if isMutable(t) {
		node.Mutable = true
	}

	if u, ok := unionDiscField(t); ok {
		filled, err := compileUnion(t, u, cache)
		if err != nil {
			return nil, err
		}
		*node = *filled
		return node, nil
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := parseTag(sf.Tag.Get("dds"))
		if tag.skip {
			continue
		}
		fieldNode, err := compileField(sf.Type, tag, cache)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if tag.key {
			fieldNode.Flags |= FlagKEY
		}
		node.Fields = append(node.Fields, &Field{
			Name:     sf.Name,
			Index:    sf.Index,
			Node:     fieldNode,
			MemberID: memberID(tag, i),
		})
	}
	return node, nil
}

type tagInfo struct {
	skip      bool
	key       bool
	bound     int
	memberID  int
	hasMember bool
	def       bool
	cas       int64
	hasCase   bool
	disc      bool
}

func parseTag(raw string) tagInfo {
	var ti tagInfo
	if raw == "" {
		return ti
	}
	if raw == "-" {
		ti.skip = true
		return ti
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "key":
			ti.key = true
		case part == "default":
			ti.def = true
		case part == "discriminator":
			ti.disc = true
		case strings.HasPrefix(part, "bounded="):
			n, _ := strconv.Atoi(strings.TrimPrefix(part, "bounded="))
			ti.bound = n
		case strings.HasPrefix(part, "id="):
			n, _ := strconv.Atoi(strings.TrimPrefix(part, "id="))
			ti.memberID, ti.hasMember = n, true
		case strings.HasPrefix(part, "case="):
			n, _ := strconv.ParseInt(strings.TrimPrefix(part, "case="), 10, 64)
			ti.cas, ti.hasCase = n, true
		}
	}
	return ti
}

func memberID(tag tagInfo, declIndex int) int {
	if tag.hasMember {
		return tag.memberID
	}
	return declIndex
}

// isAppendable reports whether t opted into DHEADER-prefixed appendable
// extensibility via a `dds:"appendable"` tag on a blank field, the
// struct-level marker convention used throughout this codec.
func isAppendable(t reflect.Type) bool { return hasStructMarker(t, "appendable") }
func isMutable(t reflect.Type) bool    { return hasStructMarker(t, "mutable") }

func hasStructMarker(t reflect.Type, marker string) bool {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" && sf.Tag.Get("dds") == marker {
			return true
		}
	}
	return false
}

func unionDiscField(t reflect.Type) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		if parseTag(t.Field(i).Tag.Get("dds")).disc {
			return i, true
		}
	}
	return 0, false
}

// compileUnion builds a SUNI node: discIdx selects the discriminator
// field; every other field is a pointer-typed case guarded by a
// `dds:"case=N"` or `dds:"default"` tag, exactly one of which is
// non-nil on the wire per JEQ semantics.
func compileUnion(t reflect.Type, discIdx int, cache map[reflect.Type]*Node) (*Node, error) {
	node := &Node{Kind: ADR, Subtype: SUNI, DiscIndex: discIdx, Cases: map[int64]*Node{}}
	for i := 0; i < t.NumField(); i++ {
		if i == discIdx {
			continue
		}
		sf := t.Field(i)
		tag := parseTag(sf.Tag.Get("dds"))
		ft := sf.Type
		if ft.Kind() != reflect.Pointer {
			return nil, fmt.Errorf("union case field %s must be a pointer type", sf.Name)
		}
		caseNode, err := compileField(ft.Elem(), tagInfo{}, cache)
		if err != nil {
			return nil, err
		}
		caseField := &Field{Name: sf.Name, Index: sf.Index, Node: caseNode}
		if tag.def {
			caseNode.Flags |= FlagDEF
			node.Default = caseNode
			node.Fields = append(node.Fields, caseField)
			continue
		}
		if !tag.hasCase {
			return nil, fmt.Errorf("union case field %s missing dds:\"case=N\" tag", sf.Name)
		}
		node.Cases[tag.cas] = caseNode
		node.Fields = append(node.Fields, caseField)
	}
	return node, nil
}

func compileField(t reflect.Type, tag tagInfo, cache map[reflect.Type]*Node) (*Node, error) {
	switch t.Kind() {
	case reflect.Bool:
		return &Node{Kind: ADR, Subtype: S1BY}, nil
	case reflect.Int8, reflect.Uint8:
		return &Node{Kind: ADR, Subtype: S1BY, Flags: signFlag(t)}, nil
	case reflect.Int16, reflect.Uint16:
		return &Node{Kind: ADR, Subtype: S2BY, Flags: signFlag(t)}, nil
	case reflect.Int32, reflect.Uint32:
		return &Node{Kind: ADR, Subtype: S4BY, Flags: signFlag(t)}, nil
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint:
		return &Node{Kind: ADR, Subtype: S8BY, Flags: signFlag(t)}, nil
	case reflect.Float32:
		return &Node{Kind: ADR, Subtype: S4BY, Flags: FlagFP}, nil
	case reflect.Float64:
		return &Node{Kind: ADR, Subtype: S8BY, Flags: FlagFP}, nil
	case reflect.String:
		if tag.bound > 0 {
			return &Node{Kind: ADR, Subtype: SBST, Bound: tag.bound}, nil
		}
		return &Node{Kind: ADR, Subtype: SSTR}, nil
	case reflect.Slice:
		elem, err := compileField(t.Elem(), tagInfo{}, cache)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ADR, Subtype: SSEQ, Elem: elem, Bound: tag.bound}, nil
	case reflect.Array:
		elem, err := compileField(t.Elem(), tagInfo{}, cache)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ADR, Subtype: SARR, Elem: elem, ArrayLen: t.Len()}, nil
	case reflect.Struct:
		// Reuse the same *Node the enclosing compileStruct call for t
		// is still filling in, rather than copying its Fields slice,
		// so a recursive reference (e.g. seq<Msg> inside Msg) observes
		// the fully populated field list once compilation completes.
		return compileStruct(t, cache)
	default:
		return nil, fmt.Errorf("unsupported field kind %s", t.Kind())
	}
}

func signFlag(t reflect.Type) Flag {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return FlagSGN
	default:
		return 0
	}
}
