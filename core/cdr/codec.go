package cdr

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
)

// RepresentationID is the 2-byte big-endian wire header tag identifying
// the CDR variant and byte order of the payload that follows.
type RepresentationID uint16

const (
	CDRBe     RepresentationID = 0x0000
	CDRLe     RepresentationID = 0x0001
	CDR2Be    RepresentationID = 0x0006
	CDR2Le    RepresentationID = 0x0007
	DCDR2Be   RepresentationID = 0x0008
	DCDR2Le   RepresentationID = 0x0009
	PLCDR2Be  RepresentationID = 0x000A
	PLCDR2Le  RepresentationID = 0x000B
)

func (r RepresentationID) order() (binary.ByteOrder, bool) {
	switch r {
	case CDRBe, CDR2Be, DCDR2Be, PLCDR2Be:
		return binary.BigEndian, true
	case CDRLe, CDR2Le, DCDR2Le, PLCDR2Le:
		return binary.LittleEndian, true
	default:
		return nil, false
	}
}

const opSerialize = "cdr.Serialize"
const opDeserialize = "cdr.Deserialize"

// Serialize encodes v (which must match prog.GoType) into the bit-exact
// wire format: a 4-byte header (representation id, options) followed by
// the payload, padded so the overall length is a multiple of 4.
func Serialize(prog *Program, v reflect.Value, rep RepresentationID) ([]byte, error) {
	order, ok := rep.order()
	if !ok {
		return nil, ddserrors.New(opSerialize, ddserrors.BadParameter, "unrecognized representation identifier")
	}
	w := &writer{order: order}
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if err := writeNode(w, prog.Root, v); err != nil {
		return nil, err
	}
	pad := (4 - len(w.buf)%4) % 4
	out := make([]byte, 4+len(w.buf)+pad)
	binary.BigEndian.PutUint16(out[0:2], uint16(rep))
	binary.BigEndian.PutUint16(out[2:4], uint16(pad))
	copy(out[4:], w.buf)
	return out, nil
}

// Deserialize decodes buf (header + payload) into a freshly allocated
// value of prog.GoType.
func Deserialize(prog *Program, buf []byte) (reflect.Value, error) {
	if len(buf) < 4 {
		return reflect.Value{}, ddserrors.New(opDeserialize, ddserrors.ErrorKind, "buffer shorter than CDR header")
	}
	rep := RepresentationID(binary.BigEndian.Uint16(buf[0:2]))
	order, ok := rep.order()
	if !ok {
		return reflect.Value{}, ddserrors.New(opDeserialize, ddserrors.ErrorKind, "unrecognized representation identifier")
	}
	pad := int(binary.BigEndian.Uint16(buf[2:4]) & 0x3)
	payload := buf[4:]
	if pad > len(payload) {
		return reflect.Value{}, ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: padding exceeds buffer")
	}
	payload = payload[:len(payload)-pad]

	r := &reader{buf: payload, order: order}
	out := reflect.New(prog.GoType).Elem()
	if err := readNode(r, prog.Root, out); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// Normalize validates buf against prog and rewrites it in native
// (little-endian) order, as mandated for every inbound fragment before
// delivery. Returns the rewritten buffer or a DESERIALIZATION_FAILED
// error if any bound is violated.
func Normalize(prog *Program, buf []byte) ([]byte, error) {
	v, err := Deserialize(prog, buf)
	if err != nil {
		return nil, err
	}
	return Serialize(prog, v, CDR2Le)
}

// ExtractKey walks prog emitting only KEY-flagged fields, producing
// canonical big-endian key CDR (no header).
func ExtractKey(prog *Program, v reflect.Value) ([]byte, error) {
	w := &writer{order: binary.BigEndian}
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if err := writeKeyFields(w, prog.Root, v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// FixedKeyBound is the boundary (inclusive) below which a key is
// considered FIXED_KEY and the keyhash is the zero-padded key bytes
// rather than an MD5 digest.
const FixedKeyBound = 16

// KeyHash computes the 16-byte big-endian key hash: zero-padded key
// bytes when the key is <= FixedKeyBound bytes, else the MD5 digest of
// the key CDR.
func KeyHash(prog *Program, v reflect.Value) ([16]byte, error) {
	key, err := ExtractKey(prog, v)
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	if len(key) <= FixedKeyBound {
		copy(out[:], key)
		return out, nil
	}
	return md5.Sum(key), nil
}

// Print renders v as diagnostic text. Total: any value the Program
// accepts renders without error.
func Print(prog *Program, v reflect.Value) string {
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	var buf bytes.Buffer
	printNode(&buf, prog.Root, v)
	return buf.String()
}

// ---- writer/reader primitives ----

type writer struct {
	buf   []byte
	order binary.ByteOrder
}

func (w *writer) align(n int) {
	pad := (n - len(w.buf)%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) putU8(b byte)    { w.buf = append(w.buf, b) }
func (w *writer) putU16(u uint16) { w.align(2); b := make([]byte, 2); w.order.PutUint16(b, u); w.buf = append(w.buf, b...) }
func (w *writer) putU32(u uint32) { w.align(4); b := make([]byte, 4); w.order.PutUint32(b, u); w.buf = append(w.buf, b...) }
func (w *writer) putU64(u uint64) { w.align(8); b := make([]byte, 8); w.order.PutUint64(b, u); w.buf = append(w.buf, b...) }

type reader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (r *reader) align(n int) {
	pad := (n - r.pos%n) % n
	r.pos += pad
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: buffer underflow")
	}
	return nil
}

func (r *reader) getU8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) getU16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) getU32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) getU64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ---- struct/value walk ----

func fieldValue(v reflect.Value, index []int) reflect.Value {
	return v.FieldByIndex(index)
}

func writeNode(w *writer, n *Node, v reflect.Value) error {
	switch n.Subtype {
	case S1BY:
		return writePrimitive(w, n, v, 1)
	case S2BY:
		return writePrimitive(w, n, v, 2)
	case S4BY:
		return writePrimitive(w, n, v, 4)
	case S8BY:
		return writePrimitive(w, n, v, 8)
	case SSTR, SBST:
		return writeString(w, n, v)
	case SSEQ:
		return writeSeq(w, n, v)
	case SARR:
		return writeArr(w, n, v)
	case SUNI:
		return writeUnion(w, n, v)
	case SSTU:
		return writeStruct(w, n, v)
	default:
		return ddserrors.New(opSerialize, ddserrors.ErrorKind, "unhandled subtype")
	}
}

func writeStruct(w *writer, n *Node, v reflect.Value) error {
	if n.Mutable {
		return writePLStruct(w, n, v)
	}
	var dlhPos int
	if n.Appendable {
		w.align(4)
		dlhPos = len(w.buf)
		w.putU32(0) // DLH placeholder, patched below
	}
	start := len(w.buf)
	for _, f := range n.Fields {
		if err := writeNode(w, f.Node, fieldValue(v, f.Index)); err != nil {
			return err
		}
	}
	if n.Appendable {
		w.order.PutUint32(w.buf[dlhPos:dlhPos+4], uint32(len(w.buf)-start))
	}
	return nil
}

// emheaderLC4 sets the EMHEADER length-code bits to LC=4 (NEXTINT): the
// 4 bytes immediately following EMHEADER give the member's encoded byte
// length, regardless of its actual subtype. Using NEXTINT uniformly
// keeps the writer simple and is always wire-legal per the PLCDR2
// member layout; it costs 4 extra bytes per member versus the narrower
// LC codes for fixed-width primitives.
const emheaderLC4 = uint32(4) << 28

// writePLStruct encodes n's members using the PLCDR2 mutable-struct
// layout: an outer DHEADER (total encoded byte length of the member
// list) followed by one EMHEADER + NEXTINT length + value per member,
// keyed by PLM member id rather than declaration order, so a reader
// compiled against a different (older or newer) version of the type can
// skip members it does not recognize.
func writePLStruct(w *writer, n *Node, v reflect.Value) error {
	w.align(4)
	dlhPos := len(w.buf)
	w.putU32(0) // DHEADER placeholder, patched below
	start := len(w.buf)
	for _, f := range n.Fields {
		w.putU32(emheaderLC4 | uint32(f.MemberID)&0x0FFFFFFF)
		lenPos := len(w.buf)
		w.putU32(0) // NEXTINT placeholder, patched below
		valStart := len(w.buf)
		if err := writeNode(w, f.Node, fieldValue(v, f.Index)); err != nil {
			return err
		}
		w.order.PutUint32(w.buf[lenPos:lenPos+4], uint32(len(w.buf)-valStart))
	}
	w.order.PutUint32(w.buf[dlhPos:dlhPos+4], uint32(len(w.buf)-start))
	return nil
}

func writeUnion(w *writer, n *Node, v reflect.Value) error {
	discField := v.Field(n.DiscIndex)
	disc := discField.Int()
	if err := writeIntWidth(w, discField); err != nil {
		return err
	}
	for _, f := range n.Fields {
		fv := fieldValue(v, f.Index)
		if fv.IsNil() {
			continue
		}
		if f.Node.Flags.has(FlagDEF) || caseMatches(n, disc, f.Node) {
			return writeNode(w, f.Node, fv.Elem())
		}
	}
	return nil
}

func caseMatches(n *Node, disc int64, node *Node) bool {
	for k, cn := range n.Cases {
		if cn == node {
			return k == disc
		}
	}
	return false
}

func writeIntWidth(w *writer, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Int8, reflect.Uint8:
		w.putU8(uint8(v.Int()))
	case reflect.Int16, reflect.Uint16:
		w.putU16(uint16(v.Int()))
	default:
		w.putU32(uint32(v.Int()))
	}
	return nil
}

func writePrimitive(w *writer, n *Node, v reflect.Value, width int) error {
	switch {
	case n.Flags.has(FlagFP) && width == 4:
		w.putU32(math.Float32bits(float32(v.Float())))
	case n.Flags.has(FlagFP) && width == 8:
		w.putU64(math.Float64bits(v.Float()))
	default:
		var u uint64
		if v.Kind() == reflect.Bool {
			if v.Bool() {
				u = 1
			}
		} else if n.Flags.has(FlagSGN) {
			u = uint64(v.Int())
		} else {
			u = v.Uint()
		}
		switch width {
		case 1:
			w.putU8(byte(u))
		case 2:
			w.putU16(uint16(u))
		case 4:
			w.putU32(uint32(u))
		case 8:
			w.putU64(u)
		}
	}
	return nil
}

func writeString(w *writer, n *Node, v reflect.Value) error {
	s := v.String()
	if n.Subtype == SBST && n.Bound > 0 && len(s) > n.Bound {
		return ddserrors.New(opSerialize, ddserrors.BadParameter, "bounded string exceeds declared bound")
	}
	w.putU32(uint32(len(s) + 1))
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
	return nil
}

func writeSeq(w *writer, n *Node, v reflect.Value) error {
	l := v.Len()
	w.putU32(uint32(l))
	for i := 0; i < l; i++ {
		if err := writeNode(w, n.Elem, v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func writeArr(w *writer, n *Node, v reflect.Value) error {
	for i := 0; i < n.ArrayLen; i++ {
		if err := writeNode(w, n.Elem, v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func readNode(r *reader, n *Node, v reflect.Value) error {
	switch n.Subtype {
	case S1BY:
		return readPrimitive(r, n, v, 1)
	case S2BY:
		return readPrimitive(r, n, v, 2)
	case S4BY:
		return readPrimitive(r, n, v, 4)
	case S8BY:
		return readPrimitive(r, n, v, 8)
	case SSTR, SBST:
		return readString(r, n, v)
	case SSEQ:
		return readSeq(r, n, v)
	case SARR:
		return readArr(r, n, v)
	case SUNI:
		return readUnion(r, n, v)
	case SSTU:
		return readStruct(r, n, v)
	default:
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "unhandled subtype")
	}
}

func readStruct(r *reader, n *Node, v reflect.Value) error {
	if n.Mutable {
		return readPLStruct(r, n, v)
	}
	if n.Appendable {
		dlh, err := r.getU32()
		if err != nil {
			return err
		}
		end := r.pos + int(dlh)
		for _, f := range n.Fields {
			if err := readNode(r, f.Node, fieldValue(v, f.Index)); err != nil {
				return err
			}
		}
		if r.pos > end {
			return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: DHEADER length violated")
		}
		r.pos = end
		return nil
	}
	for _, f := range n.Fields {
		if err := readNode(r, f.Node, fieldValue(v, f.Index)); err != nil {
			return err
		}
	}
	return nil
}

// readPLStruct decodes the PLCDR2 mutable-struct layout written by
// writePLStruct. Members are matched by id, not position: a member id
// absent from n.Fields (a newer producer's added field) is skipped
// using its NEXTINT length rather than rejected, and a field present in
// n.Fields but absent from the buffer (an older producer) is simply
// never written to, left at its zero value.
func readPLStruct(r *reader, n *Node, v reflect.Value) error {
	dlh, err := r.getU32()
	if err != nil {
		return err
	}
	end := r.pos + int(dlh)

	byID := make(map[int]*Field, len(n.Fields))
	for _, f := range n.Fields {
		byID[f.MemberID] = f
	}

	for r.pos < end {
		emheader, err := r.getU32()
		if err != nil {
			return err
		}
		memberID := int(emheader & 0x0FFFFFFF)
		length, err := r.getU32()
		if err != nil {
			return err
		}
		if err := r.need(int(length)); err != nil {
			return err
		}
		valEnd := r.pos + int(length)

		if f, ok := byID[memberID]; ok {
			if err := readNode(r, f.Node, fieldValue(v, f.Index)); err != nil {
				return err
			}
			if r.pos > valEnd {
				return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: PLM length violated")
			}
		}
		r.pos = valEnd
	}
	if r.pos != end {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: PLC DHEADER length violated")
	}
	return nil
}

func readUnion(r *reader, n *Node, v reflect.Value) error {
	discField := v.Field(n.DiscIndex)
	disc, err := readIntWidth(r, discField)
	if err != nil {
		return err
	}
	discField.SetInt(disc)

	var target *Node
	var targetField *Field
	for _, f := range n.Fields {
		if caseMatches(n, disc, f.Node) {
			target, targetField = f.Node, f
			break
		}
	}
	if target == nil && n.Default != nil {
		for _, f := range n.Fields {
			if f.Node == n.Default {
				target, targetField = f.Node, f
				break
			}
		}
	}
	if target == nil {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: unmatched union discriminant with no default branch")
	}
	fv := fieldValue(v, targetField.Index)
	fv.Set(reflect.New(fv.Type().Elem()))
	return readNode(r, target, fv.Elem())
}

func readIntWidth(r *reader, v reflect.Value) (int64, error) {
	switch v.Kind() {
	case reflect.Int8, reflect.Uint8:
		b, err := r.getU8()
		return int64(b), err
	case reflect.Int16, reflect.Uint16:
		u, err := r.getU16()
		return int64(u), err
	default:
		u, err := r.getU32()
		return int64(int32(u)), err
	}
}

func readPrimitive(r *reader, n *Node, v reflect.Value, width int) error {
	switch {
	case n.Flags.has(FlagFP) && width == 4:
		u, err := r.getU32()
		if err != nil {
			return err
		}
		v.SetFloat(float64(math.Float32frombits(u)))
	case n.Flags.has(FlagFP) && width == 8:
		u, err := r.getU64()
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(u))
	default:
		var u uint64
		var err error
		switch width {
		case 1:
			var b byte
			b, err = r.getU8()
			u = uint64(b)
		case 2:
			var x uint16
			x, err = r.getU16()
			u = uint64(x)
		case 4:
			var x uint32
			x, err = r.getU32()
			u = uint64(x)
		case 8:
			u, err = r.getU64()
		}
		if err != nil {
			return err
		}
		if v.Kind() == reflect.Bool {
			v.SetBool(u != 0)
		} else if n.Flags.has(FlagSGN) {
			v.SetInt(signExtend(u, width))
		} else {
			v.SetUint(u)
		}
	}
	return nil
}

func signExtend(u uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

func readString(r *reader, n *Node, v reflect.Value) error {
	l, err := r.getU32()
	if err != nil {
		return err
	}
	if n.Subtype == SBST && n.Bound > 0 && int(l) > n.Bound+1 {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: bounded string exceeds declared bound")
	}
	if l == 0 {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: zero-length string missing terminator")
	}
	if err := r.need(int(l)); err != nil {
		return err
	}
	s := string(r.buf[r.pos : r.pos+int(l)-1])
	r.pos += int(l)
	v.SetString(s)
	return nil
}

func readSeq(r *reader, n *Node, v reflect.Value) error {
	l, err := r.getU32()
	if err != nil {
		return err
	}
	if n.Bound > 0 && int(l) > n.Bound {
		return ddserrors.New(opDeserialize, ddserrors.ErrorKind, "DESERIALIZATION_FAILED: sequence exceeds declared bound")
	}
	slice := reflect.MakeSlice(v.Type(), int(l), int(l))
	for i := 0; i < int(l); i++ {
		if err := readNode(r, n.Elem, slice.Index(i)); err != nil {
			return err
		}
	}
	v.Set(slice)
	return nil
}

func readArr(r *reader, n *Node, v reflect.Value) error {
	for i := 0; i < n.ArrayLen; i++ {
		if err := readNode(r, n.Elem, v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// ---- key extraction ----

func writeKeyFields(w *writer, n *Node, v reflect.Value) error {
	switch n.Subtype {
	case SSTU:
		for _, f := range n.Fields {
			fv := fieldValue(v, f.Index)
			if f.Node.Flags.has(FlagKEY) {
				if err := writeNode(w, f.Node, fv); err != nil {
					return err
				}
				continue
			}
			if f.Node.Subtype == SSTU {
				if err := writeKeyFields(w, f.Node, fv); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return writeNode(w, n, v)
	}
}

// ---- print ----

func printNode(buf *bytes.Buffer, n *Node, v reflect.Value) {
	switch n.Subtype {
	case SSTU:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, "%s=", f.Name)
			printNode(buf, f.Node, fieldValue(v, f.Index))
		}
		buf.WriteByte('}')
	case SSEQ, SARR:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			printNode(buf, n.Elem, v.Index(i))
		}
		buf.WriteByte(']')
	case SUNI:
		discField := v.Field(n.DiscIndex)
		fmt.Fprintf(buf, "union(d=%d)", discField.Int())
	default:
		fmt.Fprintf(buf, "%v", v.Interface())
	}
}
