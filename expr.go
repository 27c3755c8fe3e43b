package x64code

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Expression is one unit of the code stream: an instruction, a label, initialized data, a
// reservation or an alignment. Expressions are laid out in stream order.
type Expression interface {
	// Get the position of the expression in the stream.
	Index() int
	// Get the number of bytes the expression occupies when it starts at offset.
	Size(offset int) int
	// Append the bytes of the expression to code, resolving label references with syms.
	Write(code []byte, syms Symbols) ([]byte, error)
	String() string
}

// Symbols maps label names to their offsets in the compiled code.
type Symbols map[string]int

var (
	_ Expression = (*Instruction)(nil)
	_ Expression = (*Label)(nil)
	_ Expression = (*Data)(nil)
	_ Expression = (*Reserve)(nil)
	_ Expression = (*Align)(nil)
)

// InstructionRequest carries everything needed to construct an instruction expression.
type InstructionRequest struct {
	Def      *Definition
	Operands Operands
	Lock     bool
	Mode     Mode
	Index    int // position in the stream
	Seq      int // position among instructions
}

// InstructionFactory constructs instruction expressions. The default factory is NewInstruction.
type InstructionFactory func(req InstructionRequest) (Expression, error)

// Instruction is an encoded instruction. Label references are patched when the code is compiled.
type Instruction struct {
	index int
	seq   int
	def   *Definition
	ops   Operands
	lock  bool
	enc   Encoding
}

// Encode an instruction. Encoding errors are reported immediately, while label references are
// left for Write to resolve.
func NewInstruction(req InstructionRequest) (*Instruction, error) {
	enc, err := Encode(req.Def, req.Operands, req.Mode, req.Lock)
	if err != nil {
		return nil, err
	}
	return &Instruction{
		index: req.Index,
		seq:   req.Seq,
		def:   req.Def,
		ops:   req.Operands,
		lock:  req.Lock,
		enc:   enc,
	}, nil
}

func defaultInstructionFactory(req InstructionRequest) (Expression, error) {
	return NewInstruction(req)
}

func (i *Instruction) Index() int { return i.index }

// Get the position of the instruction among the instructions of its stream.
func (i *Instruction) Seq() int { return i.seq }

func (i *Instruction) Definition() *Definition { return i.def }

func (i *Instruction) Operands() Operands { return i.ops }

// Get the encoded bytes with unresolved label references left as zero.
func (i *Instruction) Bytes() []byte { return append([]byte(nil), i.enc.Bytes...) }

func (i *Instruction) Relocs() []Reloc { return i.enc.Relocs }

func (i *Instruction) Size(int) int { return len(i.enc.Bytes) }

func (i *Instruction) Write(code []byte, syms Symbols) ([]byte, error) {
	start := len(code)
	code = append(code, i.enc.Bytes...)
	end := len(code)
	for _, r := range i.enc.Relocs {
		target, ok := syms[r.Label]
		if !ok {
			return code[:start], errors.Wrapf(ErrUndefinedLabel, "%q referenced by %s", r.Label, i)
		}
		disp := int64(target - end)
		if !fitsSigned(disp, r.Width) {
			return code[:start], errors.Wrapf(ErrRange, "%d bytes to %q for %d-bit immediate", disp, r.Label, r.Width*8)
		}
		putInt(code[start+r.Offset:], r.Width, disp)
	}
	return code, nil
}

func fitsSigned(v int64, width uint8) bool {
	switch width {
	case 1:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case 2:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case 4:
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	return true
}

func (i *Instruction) String() string { return Text(i.def, i.ops, i.lock) }

// Label marks a position in the stream.
type Label struct {
	index int
	name  string
}

func (l *Label) Index() int   { return l.index }
func (l *Label) Name() string { return l.name }

// Reference the label with an 8-bit relative displacement.
func (l *Label) Rel8() Displacement { return Ref(l.name, 1) }

// Reference the label with a 32-bit relative displacement.
func (l *Label) Rel32() Displacement { return Ref(l.name, 4) }

func (l *Label) Size(int) int                                 { return 0 }
func (l *Label) Write(code []byte, _ Symbols) ([]byte, error) { return code, nil }
func (l *Label) String() string                               { return l.name + ":" }

// Data is initialized data.
type Data struct {
	index int
	b     []byte
}

func (d *Data) Index() int { return d.index }

// Get the bytes of the data.
func (d *Data) Bytes() []byte { return d.b }

func (d *Data) Size(int) int                                 { return len(d.b) }
func (d *Data) Write(code []byte, _ Symbols) ([]byte, error) { return append(code, d.b...), nil }

func (d *Data) String() string {
	var sb strings.Builder
	sb.WriteString("db")
	for i, b := range d.b {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02x", b)
	}
	return sb.String()
}

// Reserve is uninitialized space. It is filled with zeros when the code is compiled.
type Reserve struct {
	index int
	unit  int
	count int
}

func (r *Reserve) Index() int { return r.index }

func (r *Reserve) Size(int) int { return r.unit * r.count }

func (r *Reserve) Write(code []byte, _ Symbols) ([]byte, error) {
	return append(code, make([]byte, r.Size(0))...), nil
}

func (r *Reserve) String() string {
	directive := "resb"
	switch r.unit {
	case 2:
		directive = "resw"
	case 4:
		directive = "resd"
	case 8:
		directive = "resq"
	case 10:
		directive = "rest"
	}
	return fmt.Sprintf("%s %d", directive, r.count)
}

// Align pads the stream with NOPs up to a power-of-two boundary.
type Align struct {
	index int
	pow2  int
}

func (a *Align) Index() int { return a.index }

func (a *Align) Size(offset int) int { return (a.pow2 - offset%a.pow2) % a.pow2 }

func (a *Align) Write(code []byte, _ Symbols) ([]byte, error) {
	return appendNops(code, a.Size(len(code))), nil
}

func (a *Align) String() string { return fmt.Sprintf("align %d", a.pow2) }
