package x64code

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/wdamron/x64code/feats"
	flags "github.com/wdamron/x64code/internal/flags"
)

// RegExt is the fixed opcode-register extension (the /digit of an opcode) stored in ModRM.reg.
// The zero value means the definition has no extension.
type RegExt uint8

// Get the extension for /n.
func Digit(n uint8) RegExt { return RegExt(n&7) + 1 }

// Get the /digit value and whether the extension is set.
func (x RegExt) Digit() (uint8, bool) { return uint8(x) - 1, x != 0 }

// Config is one tier of instruction-definition configuration. Zero-valued fields are unset and
// leave the value of lower tiers in place. Flags are layered by Set and Clear bitmasks.
type Config struct {
	Mnemonic string
	Opcode   []byte
	Ext      RegExt
	Size     uint8 // operand size in bits: 8, 16, 32 or 64
	Imm      uint8 // width in bytes of the immediate or relative displacement
	Prefix   byte  // mandatory prefix, emitted after the operand-size prefix
	Feats    feats.Feature
	Set      flags.Flag
	Clear    flags.Flag
	Ops      []Slot // nil inherits; an empty non-nil list declares zero operands
}

// Merge configurations in increasing priority: for every field the rightmost set value wins,
// and the Set/Clear flag masks are applied in order.
func Merge(configs ...Config) Config {
	var out Config
	for _, c := range configs {
		if c.Mnemonic != "" {
			out.Mnemonic = c.Mnemonic
		}
		if c.Opcode != nil {
			out.Opcode = c.Opcode
		}
		if c.Ext != 0 {
			out.Ext = c.Ext
		}
		if c.Size != 0 {
			out.Size = c.Size
		}
		if c.Imm != 0 {
			out.Imm = c.Imm
		}
		if c.Prefix != 0 {
			out.Prefix = c.Prefix
		}
		if c.Feats != 0 {
			out.Feats = c.Feats
		}
		if c.Ops != nil {
			out.Ops = c.Ops
		}
		out.Set = (out.Set | c.Set) &^ c.Clear
		out.Clear = (out.Clear &^ c.Set) | c.Clear
	}
	return out
}

// Layers are the three configuration tiers of a definition, in increasing priority.
type Layers struct {
	Global Config // process-wide defaults
	Group  Config // defaults shared by every variant of a mnemonic
	Leaf   Config // overrides for one variant
}

// Resolve the tiers into a definition.
func (l Layers) Resolve() *Definition {
	c := Merge(l.Global, l.Group, l.Leaf)
	return &Definition{
		Mnemonic: c.Mnemonic,
		Opcode:   c.Opcode,
		Ext:      c.Ext,
		Size:     c.Size,
		Imm:      c.Imm,
		Prefix:   c.Prefix,
		Feats:    c.Feats,
		Flags:    c.Set,
		Ops:      c.Ops,
	}
}

// Definition is one encoding recipe for a mnemonic: fixed opcode bytes, an optional /digit,
// the operand size, flags, and the operand shape it accepts.
type Definition struct {
	Mnemonic string
	Opcode   []byte
	Ext      RegExt
	Size     uint8
	Imm      uint8
	Prefix   byte
	Feats    feats.Feature
	Flags    flags.Flag
	Ops      []Slot
}

// Check if a user lock prefix is valid with the definition.
func (d *Definition) Lock() bool { return d.Flags&flags.LOCK != 0 }

// Check if a register operand is folded into the low bits of the last opcode byte.
func (d *Definition) RegInOp() bool { return d.Flags&flags.REG_IN_OP != 0 }

// Check if the opcode carries a direction bit.
func (d *Definition) DirectionBit() bool { return d.Flags&flags.DBIT != 0 }

// Get the number of operand slots.
func (d *Definition) Arity() int { return len(d.Ops) }

// Check if the definition accepts the operands: the arity must be equal and every operand must
// satisfy its slot.
func (d *Definition) Match(ops Operands) bool {
	list := ops.List()
	if len(list) != len(d.Ops) {
		return false
	}
	for i, op := range list {
		if !d.Ops[i].Match(op) {
			return false
		}
	}
	return true
}

func (d *Definition) String() string {
	var sb strings.Builder
	sb.WriteString(d.Mnemonic)
	for i, s := range d.Ops {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(s.String())
	}
	fmt.Fprintf(&sb, " ; % x", d.Opcode)
	if n, ok := d.Ext.Digit(); ok {
		fmt.Fprintf(&sb, " /%d", n)
	}
	return sb.String()
}

// DefGroup holds every definition of one mnemonic in declaration order.
type DefGroup struct {
	Name string
	Defs []*Definition
}

// Find the first definition accepting the operands.
func (g *DefGroup) Find(ops Operands) (*Definition, bool) {
	return g.FindFeatures(ops, feats.AllFeatures)
}

// Find the first definition accepting the operands whose required CPU features are all enabled.
func (g *DefGroup) FindFeatures(ops Operands, enabled feats.Feature) (*Definition, bool) {
	for _, d := range g.Defs {
		if d.Feats&enabled != d.Feats {
			continue
		}
		if d.Match(ops) {
			return d, true
		}
	}
	return nil, false
}

// RawTable maps mnemonics to their variant configurations. A single variant is the sole
// definition of its mnemonic; otherwise the first variant holds the group defaults.
type RawTable map[string][]Config

// Get a copy of the table with the groups of other added, replacing groups of the same name.
func (t RawTable) Overlay(other RawTable) RawTable {
	out := make(RawTable, len(t)+len(other))
	for name, variants := range t {
		out[name] = variants
	}
	for name, variants := range other {
		out[name] = variants
	}
	return out
}

// DefTable maps mnemonics to definition groups. A table is immutable once built.
type DefTable struct {
	groups map[string]*DefGroup
}

// Build a definition table from raw variants layered over the global defaults.
func NewDefTable(raw RawTable, global Config) *DefTable {
	t := &DefTable{groups: make(map[string]*DefGroup, len(raw))}
	for name, variants := range raw {
		g := &DefGroup{Name: name}
		switch len(variants) {
		case 0:
		case 1:
			g.Defs = append(g.Defs, newDefinition(name, global, Config{}, variants[0]))
		default:
			for _, v := range variants[1:] {
				g.Defs = append(g.Defs, newDefinition(name, global, variants[0], v))
			}
		}
		t.groups[name] = g
	}
	return t
}

func newDefinition(name string, global, group, leaf Config) *Definition {
	d := Layers{Global: global, Group: group, Leaf: leaf}.Resolve()
	if d.Mnemonic == "" {
		d.Mnemonic = name
	}
	return d
}

// Get the definition group for a mnemonic.
func (t *DefTable) Group(name string) (*DefGroup, bool) {
	g, ok := t.groups[name]
	return g, ok
}

// Get the sorted mnemonics of the table.
func (t *DefTable) Mnemonics() []string {
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find the first definition of the mnemonic accepting the operands.
func (t *DefTable) Find(name string, ops Operands) (*Definition, error) {
	return t.FindFeatures(name, ops, feats.AllFeatures)
}

// Find the first definition of the mnemonic accepting the operands, skipping definitions which
// require disabled CPU features.
func (t *DefTable) FindFeatures(name string, ops Operands, enabled feats.Feature) (*Definition, error) {
	g, ok := t.groups[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMnemonic, "%q", name)
	}
	d, ok := g.FindFeatures(ops, enabled)
	if !ok {
		return nil, errors.Wrapf(ErrNoMatch, "%s %s", name, describeOperands(ops))
	}
	return d, nil
}

func describeOperands(ops Operands) string {
	list := ops.List()
	parts := make([]string, len(list))
	for i, op := range list {
		parts[i] = op.Kind().String()
		if r, ok := op.(Reg); ok {
			parts[i] = r.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
