package x64code

import "strings"

// Class is a set of operand shapes accepted by a slot matcher.
//
// Register classes accept general-purpose registers of the given width. Memory classes accept
// memory references which declare the same width or no width at all. Immediate classes accept
// immediates which fit the width as signed or unsigned values; the SImm classes accept only
// values which survive sign extension to the operand size. Relative classes accept displacements
// and label references. Only MemOffset accepts memory references with a 64-bit displacement.
type Class uint32

const (
	Reg8 Class = 1 << iota
	Reg16
	Reg32
	Reg64
	Mem8
	Mem16
	Mem32
	Mem64
	AnyMem    // any memory reference, regardless of width
	MemOffset // an absolute memory reference without base or index
	Imm8
	Imm16
	Imm32
	Imm64
	SImm8
	SImm32
	Rel8
	Rel32

	RegMem8  = Reg8 | Mem8
	RegMem16 = Reg16 | Mem16
	RegMem32 = Reg32 | Mem32
	RegMem64 = Reg64 | Mem64
)

var classNames = [...]string{
	"reg8", "reg16", "reg32", "reg64",
	"mem8", "mem16", "mem32", "mem64", "mem", "moffs",
	"imm8", "imm16", "imm32", "imm64", "simm8", "simm32",
	"rel8", "rel32",
}

func (c Class) String() string {
	var parts []string
	for i, name := range classNames {
		if c&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Look up a single class by its lower-case name (e.g. "reg32", "simm8").
func ClassByName(name string) (Class, bool) {
	for i, n := range classNames {
		if n == name {
			return 1 << i, true
		}
	}
	return 0, false
}

// Check if an operand is a member of the class.
func (c Class) Accepts(op Operand) bool {
	switch v := op.(type) {
	case Reg:
		if v.Family() != REG_LEGACY && v.Family() != REG_HIGHBYTE {
			return false
		}
		switch v.Width() {
		case 1:
			return c&Reg8 != 0
		case 2:
			return c&Reg16 != 0
		case 4:
			return c&Reg32 != 0
		case 8:
			return c&Reg64 != 0
		}
	case Mem:
		if c&MemOffset != 0 && v.IsAbsolute() {
			return true
		}
		// 64-bit displacements only fit memory-offset forms
		if v.HasDisp() && v.Disp.Width() == 8 {
			return false
		}
		if c&AnyMem != 0 {
			return true
		}
		switch v.Width {
		case 0:
			return c&(Mem8|Mem16|Mem32|Mem64) != 0
		case 1:
			return c&Mem8 != 0
		case 2:
			return c&Mem16 != 0
		case 4:
			return c&Mem32 != 0
		case 8:
			return c&Mem64 != 0
		}
	case Immediate:
		w, sw := v.fieldWidth(), v.signedWidth()
		return c&Imm8 != 0 && w == 1 ||
			c&Imm16 != 0 && w <= 2 ||
			c&Imm32 != 0 && w <= 4 ||
			c&Imm64 != 0 ||
			c&SImm8 != 0 && sw == 1 ||
			c&SImm32 != 0 && sw <= 4
	case Displacement:
		w := v.Width()
		return c&Rel8 != 0 && w == 1 || c&Rel32 != 0 && w <= 4
	}
	return false
}

// Get the narrowest field the constant fits, read either as signed or as unsigned.
func (c Constant) fieldWidth() uint8 {
	if c.value >= 0 || !c.signed {
		return unsignedWidth(uint64(c.value))
	}
	return c.width
}

// Get the width of the constant when it is reinterpreted as a signed value.
func (c Constant) signedWidth() uint8 {
	if c.signed {
		return c.width
	}
	if c.value < 0 {
		return 8
	}
	return signedWidth(c.value)
}

// Matcher accepts or rejects a single operand. A matcher either compares against one exact
// register by identity or tests membership of a Class.
type Matcher struct {
	reg   Reg
	class Class
}

// Match exactly one register.
func Exact(r Reg) Matcher { return Matcher{reg: r} }

// Match any operand in the class.
func OfClass(c Class) Matcher { return Matcher{class: c} }

// Get the register matched exactly, if the matcher is an exact token.
func (m Matcher) Reg() (Reg, bool) { return m.reg, m.reg != 0 }

// Get the class of the matcher. Exact-token matchers have an empty class.
func (m Matcher) Class() Class { return m.class }

func (m Matcher) Match(op Operand) bool {
	if m.reg != 0 {
		r, ok := op.(Reg)
		return ok && r == m.reg
	}
	return m.class.Accepts(op)
}

func (m Matcher) String() string {
	if m.reg != 0 {
		return m.reg.String()
	}
	return m.class.String()
}

// Slot is the ordered list of matchers for one operand position. An operand satisfies the
// slot if any matcher accepts it.
type Slot []Matcher

func (s Slot) Match(op Operand) bool {
	for _, m := range s {
		if m.Match(op) {
			return true
		}
	}
	return false
}

func (s Slot) String() string {
	parts := make([]string, len(s))
	for i, m := range s {
		parts[i] = m.String()
	}
	return strings.Join(parts, "/")
}

// Build a slot from a single class.
func S(c Class) Slot { return Slot{OfClass(c)} }

// Build a slot accepting exactly the given registers.
func R(regs ...Reg) Slot {
	s := make(Slot, len(regs))
	for i, r := range regs {
		s[i] = Exact(r)
	}
	return s
}

// Check if the operand is matched by an exact-token matcher of the slot. Registers matched
// exactly are implicit in the opcode and take no part in ModRM encoding.
func (s Slot) matchExact(op Operand) bool {
	r, ok := op.(Reg)
	if !ok {
		return false
	}
	for _, m := range s {
		if m.reg != 0 && m.reg == r {
			return true
		}
	}
	return false
}
