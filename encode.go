package x64code

import (
	"strings"

	"github.com/pkg/errors"

	flags "github.com/wdamron/x64code/internal/flags"
)

// Mode is the processor mode code is assembled for. Its value is the default address size in bits.
type Mode uint8

const (
	ModeReal   Mode = 16
	ModeCompat Mode = 32
	ModeLong   Mode = 64
)

func (m Mode) String() string {
	switch m {
	case ModeReal:
		return "real"
	case ModeCompat:
		return "compat"
	case ModeLong:
		return "long"
	}
	return "invalid"
}

// Look up a mode by name ("real", "compat", "long") or by bit width ("16", "32", "64").
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "real", "16":
		return ModeReal, true
	case "compat", "protected", "32":
		return ModeCompat, true
	case "long", "64":
		return ModeLong, true
	}
	return 0, false
}

const (
	lockPrefix     byte = 0xf0
	addrSizePrefix byte = 0x67
	opSizePrefix   byte = 0x66
)

const (
	modDirect uint8 = 3
	modNoDisp uint8 = 0
	modDisp8  uint8 = 1
	modDisp32 uint8 = 2
)

// Reloc is a reference from an encoded instruction to a label. The field at Offset (relative to
// the start of the instruction) receives the distance from the end of the instruction to the label.
type Reloc struct {
	Offset int
	Width  uint8
	Label  string
}

// Encoding is the machine code of one instruction, with label references left unresolved.
type Encoding struct {
	Bytes  []byte
	Relocs []Reloc
}

// modrm describes the ModRM/SIB/displacement part of an instruction.
type modrm struct {
	used       bool
	mod, reg   uint8
	rm         uint8
	sib        byte
	hasSib     bool
	dispWidth  uint8
	disp       Displacement
	moffsWidth uint8
	rexR       bool
	rexX       bool
	rexB       bool
	addr67     bool
}

// Encode the operands with a matched definition. The lock prefix is emitted when lock is set.
func Encode(d *Definition, ops Operands, mode Mode, lock bool) (Encoding, error) {
	if !d.Match(ops) {
		return Encoding{}, errors.Wrapf(ErrNoMatch, "%s %s", d.Mnemonic, describeOperands(ops))
	}

	var (
		explicit []Operand
		imm      Operand
	)
	for i, op := range ops.List() {
		switch op.Kind() {
		case KindImmediate, KindDisplacement:
			imm = op
		case KindRegister:
			if d.Ops[i].matchExact(op) {
				continue
			}
			explicit = append(explicit, op)
		case KindMemory:
			explicit = append(explicit, op)
		}
	}

	opcode := append([]byte(nil), d.Opcode...)
	if len(opcode) == 0 {
		return Encoding{}, errors.Wrapf(ErrEncoding, "No opcode for %s", d.Mnemonic)
	}
	last := len(opcode) - 1

	var (
		m        modrm
		rmOp     Operand
		regOp    Operand
		err      error
		rexForce bool
		noRex    bool
	)
	switch {
	case d.Flags&flags.MOFFS != 0:
		mem, ok := explicitMem(explicit)
		if !ok || !mem.IsAbsolute() {
			return Encoding{}, errors.Wrapf(ErrEncoding, "%s requires an absolute memory offset", d.Mnemonic)
		}
		if _, isLabel := mem.Disp.Label(); isLabel {
			return Encoding{}, errors.Wrapf(ErrEncoding, "Label references are unsupported in memory offsets")
		}
		m.disp = mem.Disp
		m.moffsWidth = uint8(mode) / 8
		if v := m.disp.Int64(); m.moffsWidth < 8 && !fitsSigned(v, m.moffsWidth) && uint64(v) >= 1<<(8*uint(m.moffsWidth)) {
			return Encoding{}, errors.Wrapf(ErrEncoding, "Memory offset %s exceeds the %d-bit address size", m.disp, mode)
		}
	case d.RegInOp():
		if len(explicit) != 1 {
			return Encoding{}, errors.Wrapf(ErrEncoding, "%s expects one register folded into the opcode", d.Mnemonic)
		}
		r, ok := explicit[0].(Reg)
		if !ok {
			return Encoding{}, errors.Wrapf(ErrEncoding, "%s expects a register operand", d.Mnemonic)
		}
		opcode[last] |= r.Num() & 7
		m.rexB = r.Num()&8 != 0
		regOp = r
	default:
		digit, hasExt := d.Ext.Digit()
		switch {
		case hasExt:
			if len(explicit) > 0 {
				rmOp = explicit[0]
			}
			m.reg = digit
		case len(explicit) == 2:
			_, srcIsMem := explicit[1].(Mem)
			switch {
			case d.Flags&flags.ENC_RM != 0:
				regOp, rmOp = explicit[0], explicit[1]
			case d.DirectionBit() && srcIsMem:
				opcode[last] |= 2
				regOp, rmOp = explicit[0], explicit[1]
			default:
				regOp, rmOp = explicit[1], explicit[0]
			}
			r, ok := regOp.(Reg)
			if !ok {
				return Encoding{}, errors.Wrapf(ErrEncoding, "%s cannot encode two memory operands", d.Mnemonic)
			}
			m.reg = r.Num() & 7
			m.rexR = r.Num()&8 != 0
		case len(explicit) == 1:
			rmOp = explicit[0]
		}
		if rmOp != nil {
			m.used = true
			switch v := rmOp.(type) {
			case Reg:
				m.mod, m.rm = modDirect, v.Num()&7
				m.rexB = v.Num()&8 != 0
			case Mem:
				if err = m.address(v, mode); err != nil {
					return Encoding{}, err
				}
			}
		}
	}

	for _, op := range [...]Operand{regOp, rmOp} {
		if r, ok := op.(Reg); ok {
			if r.Family() == REG_HIGHBYTE {
				noRex = true
			} else if r.needsRex() {
				rexForce = true
			}
		}
	}

	rexW := d.Size == 64 && d.Flags&flags.DEF64 == 0
	needRex := rexW || rexForce || m.rexR || m.rexX || m.rexB
	if needRex && noRex {
		return Encoding{}, errors.Wrapf(ErrEncoding, "Unsupported high-byte register combined with extended registers or 64-bit argument-size")
	}
	if needRex && mode != ModeLong {
		return Encoding{}, errors.Wrapf(ErrEncoding, "REX prefix required for %s outside of long mode", d.Mnemonic)
	}

	var buf buffer
	if lock {
		if !d.Lock() {
			return Encoding{}, errors.Wrapf(ErrEncoding, "LOCK prefix unsupported for %s", d.Mnemonic)
		}
		if _, ok := ops.Dst.(Mem); !ok {
			return Encoding{}, errors.Wrapf(ErrEncoding, "LOCK prefix requires a memory destination for %s", d.Mnemonic)
		}
		buf.Byte(lockPrefix)
	}
	if m.addr67 {
		buf.Byte(addrSizePrefix)
	}
	switch d.Size {
	case 16:
		if mode != ModeReal {
			buf.Byte(opSizePrefix)
		}
	case 32:
		if mode == ModeReal {
			buf.Byte(opSizePrefix)
		}
	case 64:
		if mode != ModeLong {
			return Encoding{}, errors.Wrapf(ErrEncoding, "64-bit operand size for %s outside of long mode", d.Mnemonic)
		}
	}
	if d.Prefix != 0 {
		buf.Byte(d.Prefix)
	}
	if needRex {
		buf.Byte(rex(rexW, m.rexR, m.rexX, m.rexB))
	}
	buf.Bytes(opcode)

	var relocs []Reloc
	if m.used {
		buf.Byte(m.mod<<6 | m.reg<<3 | m.rm)
		if m.hasSib {
			buf.Byte(m.sib)
		}
	}
	if m.dispWidth != 0 {
		if name, isLabel := m.disp.Label(); isLabel {
			relocs = append(relocs, Reloc{Offset: buf.Len(), Width: m.dispWidth, Label: name})
		}
		buf.Int(m.dispWidth, m.disp.Int64())
	}
	if m.moffsWidth != 0 {
		buf.Int(m.moffsWidth, m.disp.Int64())
	}

	if imm != nil {
		if d.Imm == 0 {
			return Encoding{}, errors.Wrapf(ErrEncoding, "%s declares no immediate", d.Mnemonic)
		}
		switch v := imm.(type) {
		case Immediate:
			buf.Int(d.Imm, v.Int64())
		case Displacement:
			if name, isLabel := v.Label(); isLabel {
				relocs = append(relocs, Reloc{Offset: buf.Len(), Width: d.Imm, Label: name})
			}
			buf.Int(d.Imm, v.Int64())
		}
	}

	return Encoding{Bytes: buf.Get(), Relocs: relocs}, nil
}

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 8
	}
	if r {
		v |= 4
	}
	if x {
		v |= 2
	}
	if b {
		v |= 1
	}
	return v
}

func explicitMem(ops []Operand) (Mem, bool) {
	for _, op := range ops {
		if m, ok := op.(Mem); ok {
			return m, true
		}
	}
	return Mem{}, false
}

// Compute the ModRM/SIB/displacement fields addressing mem.
func (m *modrm) address(mem Mem, mode Mode) error {
	width, err := addrWidth(mem, mode)
	if err != nil {
		return err
	}
	m.addr67 = width == 4 && mode != ModeCompat

	if _, isLabel := mem.Disp.Label(); isLabel && mem.Base.Family() != REG_RIP {
		return errors.Wrapf(ErrEncoding, "Label displacements require RIP-relative addressing")
	}
	if mem.HasDisp() && mem.Disp.Width() == 8 {
		return errors.Wrapf(ErrEncoding, "64-bit displacement %s is only valid in a memory-offset form", mem.Disp)
	}
	m.disp = mem.Disp

	if mem.Base != 0 && mem.Base.Family() == REG_RIP {
		if mem.Index != 0 {
			return errors.Wrapf(ErrEncoding, "RIP-relative addressing cannot use an index register")
		}
		if mode != ModeLong {
			return errors.Wrapf(ErrEncoding, "RIP-relative addressing outside of long mode")
		}
		m.mod, m.rm, m.dispWidth = modNoDisp, 5, 4
		return nil
	}

	if mem.IsAbsolute() {
		m.mod, m.dispWidth = modNoDisp, 4
		if mode == ModeLong {
			// in long mode rm=101 is RIP-relative, so absolute addresses go through a SIB without base or index
			m.rm, m.hasSib, m.sib = 4, true, 0x25
		} else {
			m.rm = 5
		}
		return nil
	}

	scale, err := scaleBits(mem.Scale)
	if err != nil {
		return err
	}
	index := uint8(4) // none
	if mem.Index != 0 {
		if mem.Index.Num() == 4 {
			return errors.Wrapf(ErrEncoding, "%s cannot be used as an index register", mem.Index)
		}
		index = mem.Index.Num() & 7
		m.rexX = mem.Index.Num()&8 != 0
	}

	if mem.Base == 0 {
		m.mod, m.rm, m.dispWidth = modNoDisp, 4, 4
		m.hasSib, m.sib = true, scale<<6|index<<3|5
		return nil
	}

	base := mem.Base.Num()
	m.rexB = base&8 != 0
	switch {
	case !mem.HasDisp() && base&7 == 5:
		// RBP/R13 without displacement would mean disp32 without base
		m.mod, m.dispWidth = modDisp8, 1
	case !mem.HasDisp():
		m.mod = modNoDisp
	case mem.Disp.Width() == 1:
		m.mod, m.dispWidth = modDisp8, 1
	default:
		m.mod, m.dispWidth = modDisp32, 4
	}
	if mem.Index != 0 || base&7 == 4 {
		m.rm, m.hasSib, m.sib = 4, true, scale<<6|index<<3|base&7
	} else {
		m.rm = base & 7
	}
	return nil
}

// Get the width in bytes of the address registers of mem, defaulting to the mode's address size.
func addrWidth(mem Mem, mode Mode) (uint8, error) {
	var width uint8
	for _, r := range [...]Reg{mem.Base, mem.Index} {
		if r == 0 {
			continue
		}
		if r.Family() == REG_HIGHBYTE || r.Width() < 2 {
			return 0, errors.Wrapf(ErrEncoding, "Invalid address register %s", r)
		}
		if r.Family() == REG_RIP && r == mem.Index {
			return 0, errors.Wrapf(ErrEncoding, "Invalid index register %s", r)
		}
		if width != 0 && r.Width() != width {
			return 0, errors.Wrapf(ErrEncoding, "Mismatched address register widths in %s", mem)
		}
		width = r.Width()
	}
	switch {
	case width == 0:
		if mode == ModeLong {
			return 8, nil
		}
		return 4, nil
	case width == 2:
		return 0, errors.Wrapf(ErrEncoding, "16-bit addressing is unsupported")
	case width == 8 && mode != ModeLong:
		return 0, errors.Wrapf(ErrEncoding, "64-bit addressing outside of long mode")
	}
	return width, nil
}

func scaleBits(scale uint8) (uint8, error) {
	switch scale {
	case 0, 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	}
	return 0, errors.Wrapf(ErrEncoding, "Invalid scale %d", scale)
}

// Render the instruction in Intel syntax.
func Text(d *Definition, ops Operands, lock bool) string {
	var sb strings.Builder
	if lock {
		sb.WriteString("lock ")
	}
	sb.WriteString(d.Mnemonic)
	for i, op := range ops.List() {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		if mem, ok := op.(Mem); ok && i < len(d.Ops) {
			sb.WriteString(ptrSize(mem, d, d.Ops[i]))
		}
		sb.WriteString(op.String())
	}
	return sb.String()
}

func ptrSize(mem Mem, d *Definition, slot Slot) string {
	width := mem.Width
	if width == 0 {
		for _, matcher := range slot {
			if matcher.Class()&AnyMem != 0 {
				return ""
			}
		}
		width = d.Size / 8
	}
	switch width {
	case 1:
		return "byte ptr "
	case 2:
		return "word ptr "
	case 4:
		return "dword ptr "
	case 8:
		return "qword ptr "
	}
	return ""
}
