package x64code

import (
	"fmt"
	"math"
	"strings"
)

// OperandKind identifies the variant of an Operand.
type OperandKind uint8

const (
	KindRegister OperandKind = iota + 1
	KindMemory
	KindImmediate
	KindDisplacement
)

func (k OperandKind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindMemory:
		return "memory"
	case KindImmediate:
		return "immediate"
	case KindDisplacement:
		return "displacement"
	}
	return "unknown"
}

// Operand is an instruction operand: a Reg, a Mem, an Immediate or a Displacement.
//
// The set of operand types is closed; switch on Kind to handle each variant.
type Operand interface {
	Kind() OperandKind
	String() string
	operand()
}

// Pair is a 64-bit value split into its low and high 32-bit halves.
type Pair struct {
	Lo, Hi uint32
}

// Split a 64-bit value into its low and high 32-bit halves.
func SplitUint64(v uint64) Pair { return Pair{Lo: uint32(v), Hi: uint32(v >> 32)} }

// Get the 64-bit value represented by the pair.
func (p Pair) Uint64() uint64 { return uint64(p.Hi)<<32 | uint64(p.Lo) }

// Constant is a numeric value embedded in an instruction, either as an immediate or as a
// displacement. A displacement may instead reference a label, in which case its value is
// only known once the code is linked.
type Constant struct {
	value  int64
	label  string
	width  uint8
	signed bool
}

func newConstant(v int64, signed bool) Constant {
	c := Constant{value: v, signed: signed}
	if signed {
		c.width = signedWidth(v)
	} else {
		c.width = unsignedWidth(uint64(v))
	}
	return c
}

func signedWidth(v int64) uint8 {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 1
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 4
	}
	return 8
}

func unsignedWidth(v uint64) uint8 {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	case v <= math.MaxUint32:
		return 4
	}
	return 8
}

// Get the value of the constant. Label references have no value before linking and return 0.
func (c Constant) Int64() int64 { return c.value }

// Get the value of the constant as low and high 32-bit halves.
func (c Constant) Pair() Pair { return SplitUint64(uint64(c.value)) }

// Get the width in bytes (1, 2, 4 or 8) required to encode the constant. For label references
// this is the width chosen when the reference was created.
func (c Constant) Width() uint8 { return c.width }

// Check if the constant is interpreted as a signed value.
func (c Constant) Signed() bool { return c.signed }

// Get the name of the referenced label, if the constant is a label reference.
func (c Constant) Label() (string, bool) { return c.label, c.label != "" }

func (c Constant) String() string {
	if c.label != "" {
		return c.label
	}
	if c.signed && c.value < 0 {
		return fmt.Sprintf("-%#x", uint64(-c.value))
	}
	return fmt.Sprintf("%#x", uint64(c.value))
}

// Immediate is a literal constant embedded in an instruction.
//
// Immediate implements Operand.
type Immediate struct{ Constant }

// Displacement is a signed offset, relative to a base register, the instruction pointer, or
// a label.
//
// Displacement implements Operand.
type Displacement struct{ Constant }

var _ Operand = Immediate{}
var _ Operand = Displacement{}

func (i Immediate) operand()             {}
func (i Immediate) Kind() OperandKind    { return KindImmediate }
func (d Displacement) operand()          {}
func (d Displacement) Kind() OperandKind { return KindDisplacement }

// Create a signed immediate.
func Imm(v int64) Immediate { return Immediate{newConstant(v, true)} }

// Create an unsigned immediate.
func Uimm(v uint64) Immediate { return Immediate{newConstant(int64(v), false)} }

// Create an immediate from low and high 32-bit halves.
func ImmPair(p Pair, signed bool) Immediate {
	return Immediate{newConstant(int64(p.Uint64()), signed)}
}

// Create a signed displacement.
func Disp(v int64) Displacement { return Displacement{newConstant(v, true)} }

// Create a displacement from low and high 32-bit halves.
func DispPair(p Pair) Displacement { return Displacement{newConstant(int64(p.Uint64()), true)} }

// Reference a label as a relative displacement of the given width (1, 2 or 4 bytes).
func Ref(label string, width uint8) Displacement {
	return Displacement{Constant{label: label, width: width, signed: true}}
}

// Mem is a memory-reference operand. Base may be RIP for RIP-relative addressing. A Mem without
// base and index addresses the absolute location given by its displacement.
//
// Width optionally declares the size in bytes of the referenced value; a zero Width matches
// definitions of any operand size.
//
// Mem implements Operand.
type Mem struct {
	Disp  Displacement
	Base  Reg
	Index Reg
	Scale uint8
	Width uint8
}

var _ Operand = Mem{}

func (m Mem) operand()          {}
func (m Mem) Kind() OperandKind { return KindMemory }

// Get a copy of the memory reference carrying the given displacement.
func (m Mem) Displace(v int64) Mem {
	m.Disp = Disp(v)
	return m
}

// Get a copy of the memory reference carrying a displacement built from low and high 32-bit halves.
func (m Mem) DisplacePair(p Pair) Mem {
	m.Disp = DispPair(p)
	return m
}

// Check if the memory reference carries a displacement.
func (m Mem) HasDisp() bool { return m.Disp.width != 0 }

// Check if the memory reference is an absolute address (no base or index register).
func (m Mem) IsAbsolute() bool { return m.Base == 0 && m.Index == 0 }

func (m Mem) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	if m.Base != 0 {
		sb.WriteString(m.Base.String())
	}
	if m.Index != 0 {
		if m.Base != 0 {
			sb.WriteByte('+')
		}
		scale := m.Scale
		if scale == 0 {
			scale = 1
		}
		fmt.Fprintf(&sb, "%s*%d", m.Index, scale)
	}
	if m.HasDisp() {
		s := m.Disp.String()
		switch {
		case m.IsAbsolute():
		case strings.HasPrefix(s, "-"):
		default:
			sb.WriteByte('+')
		}
		sb.WriteString(s)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Operands is the (destination, source, immediate-or-displacement) triple attached to an
// instruction. Any member may be nil.
type Operands struct {
	Dst Operand
	Src Operand
	Imm Operand
}

// Get the non-nil operands in slot order.
func (o Operands) List() []Operand {
	list := make([]Operand, 0, 3)
	for _, op := range [...]Operand{o.Dst, o.Src, o.Imm} {
		if op != nil {
			list = append(list, op)
		}
	}
	return list
}

func memOperand(o Operands) (Mem, bool) {
	if m, ok := o.Dst.(Mem); ok {
		return m, true
	}
	if m, ok := o.Src.(Mem); ok {
		return m, true
	}
	return Mem{}, false
}
