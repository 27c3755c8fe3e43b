package x64code

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wdamron/x64code/feats"
)

// Code accumulates a stream of expressions and compiles them to machine code.
//
// A Code is not safe for concurrent use. Compile may be called any number of times; every call
// lays out the current stream from scratch.
type Code struct {
	exprs   []Expression
	labels  map[string]*Label
	ninst   int
	mode    Mode
	table   *DefTable
	feats   feats.Feature
	factory InstructionFactory
	log     logrus.FieldLogger
}

// Option configures a Code.
type Option func(*Code)

// Assemble for the given processor mode. The default is ModeLong.
func WithMode(mode Mode) Option { return func(c *Code) { c.mode = mode } }

// Look up instructions in the given table instead of DefaultTable.
func WithTable(t *DefTable) Option { return func(c *Code) { c.table = t } }

// Only select definitions whose CPU features are enabled. All features are enabled by default.
func WithFeatures(enabled feats.Feature) Option { return func(c *Code) { c.feats = enabled } }

// Construct instruction expressions with the given factory instead of NewInstruction.
func WithInstructionFactory(f InstructionFactory) Option {
	return func(c *Code) { c.factory = f }
}

// Log through the given logger instead of the standard logrus logger.
func WithLogger(log logrus.FieldLogger) Option { return func(c *Code) { c.log = log } }

// Create an empty code stream.
func New(opts ...Option) *Code {
	c := &Code{
		labels:  make(map[string]*Label),
		mode:    ModeLong,
		table:   DefaultTable,
		feats:   feats.AllFeatures,
		factory: defaultInstructionFactory,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Code) Mode() Mode { return c.mode }

// Get the expressions of the stream in order.
func (c *Code) Expressions() []Expression { return append([]Expression(nil), c.exprs...) }

// Look up a label by name.
func (c *Code) Lookup(name string) (*Label, bool) {
	l, ok := c.labels[name]
	return l, ok
}

// Arg is a value accepted by the builder methods in operand position: a Reg, a Mem, an
// Immediate, a Displacement, a *Label, a Pair or a Go integer.
type Arg = any

// Emit an instruction with the operands of a definition which was already selected.
func (c *Code) Ins(def *Definition, ops Operands) (Expression, error) {
	return c.emit(def, ops, false)
}

// Emit an instruction without operands.
func (c *Code) ZeroOperands(mnemonic string) (Expression, error) {
	return c.inst(mnemonic, Operands{}, false)
}

// Emit an instruction whose only operand is a signed immediate.
func (c *Code) Immediate(mnemonic string, v int64) (Expression, error) {
	return c.inst(mnemonic, Operands{Imm: Imm(v)}, false)
}

// Emit an instruction whose only operand is an unsigned immediate.
func (c *Code) ImmediateUnsigned(mnemonic string, v uint64) (Expression, error) {
	return c.inst(mnemonic, Operands{Imm: Uimm(v)}, false)
}

// Emit an instruction with a destination and an optional displacement. A numeric destination
// addresses memory at that absolute location.
func (c *Code) OneOperand(mnemonic string, dst Arg, disp ...Arg) (Expression, error) {
	d, err := toRegOrMem(dst)
	if err != nil {
		return nil, c.fail(mnemonic, err)
	}
	ops := Operands{Dst: d}
	switch len(disp) {
	case 0:
	case 1:
		if ops.Imm, err = toDisplacement(disp[0]); err != nil {
			return nil, c.fail(mnemonic, err)
		}
	default:
		return nil, c.fail(mnemonic, errors.Wrapf(ErrOperandType, "Expected at most one displacement, got %d", len(disp)))
	}
	return c.inst(mnemonic, ops, false)
}

// Emit an instruction with a destination and a source. A numeric source is an immediate, not a
// memory reference; use MemoryAt to address memory at an absolute location.
func (c *Code) TwoOperands(mnemonic string, dst, src Arg) (Expression, error) {
	ops, err := operands(dst, src)
	if err != nil {
		return nil, c.fail(mnemonic, err)
	}
	return c.inst(mnemonic, ops, false)
}

// Emit an instruction with up to three operands. The first is the destination; the second is
// the source, or the immediate if it is a constant; the third is the immediate.
func (c *Code) Inst(mnemonic string, args ...Arg) (Expression, error) {
	ops, err := operands(args...)
	if err != nil {
		return nil, c.fail(mnemonic, err)
	}
	return c.inst(mnemonic, ops, false)
}

// Emit an instruction with up to three operands, prefixed with LOCK.
func (c *Code) Lock(mnemonic string, args ...Arg) (Expression, error) {
	ops, err := operands(args...)
	if err != nil {
		return nil, c.fail(mnemonic, err)
	}
	return c.inst(mnemonic, ops, true)
}

// Emit a jump or call to a target: a *Label or label name (32-bit relative), a Displacement,
// or a register or memory operand for indirect transfers.
func (c *Code) Jump(mnemonic string, target Arg) (Expression, error) {
	var ops Operands
	switch v := target.(type) {
	case *Label:
		ops.Imm = v.Rel32()
	case string:
		if v == "" {
			return nil, c.fail(mnemonic, errors.Wrapf(ErrLabel, "Empty label name"))
		}
		ops.Imm = Ref(v, 4)
	case Displacement:
		ops.Imm = v
	case Reg, Mem:
		ops.Dst = v.(Operand)
	default:
		return nil, c.fail(mnemonic, errors.Wrapf(ErrOperandType, "Invalid jump target %T", target))
	}
	return c.inst(mnemonic, ops, false)
}

// Emit the conditional jump for cc.
func (c *Code) Jcc(cc ConditionCode, target Arg) (Expression, error) {
	return c.Jump(cc.Jump(), target)
}

// Emit the conditional set for cc.
func (c *Code) Setcc(cc ConditionCode, dst Arg) (Expression, error) {
	return c.Inst(cc.Set(), dst)
}

// Emit the conditional move for cc.
func (c *Code) Cmovcc(cc ConditionCode, dst, src Arg) (Expression, error) {
	return c.Inst(cc.Move(), dst, src)
}

// Build a memory reference to an absolute address from an integer, a Pair or a Displacement.
func (c *Code) MemoryAt(disp Arg) (Mem, error) { return memoryAt(disp) }

func memoryAt(disp Arg) (Mem, error) {
	d, err := toDisplacement(disp)
	if err != nil {
		return Mem{}, err
	}
	if _, isLabel := d.Label(); isLabel {
		return Mem{}, errors.Wrapf(ErrOperandType, "Absolute memory reference to label %s", d)
	}
	return Mem{Disp: d}, nil
}

// Declare a label at the current position of the stream.
func (c *Code) Label(name string) (*Label, error) {
	if name == "" {
		return nil, errors.Wrapf(ErrLabel, "Empty label name")
	}
	if _, ok := c.labels[name]; ok {
		return nil, errors.Wrapf(ErrLabel, "Duplicate label %q", name)
	}
	l := &Label{index: len(c.exprs), name: name}
	c.labels[name] = l
	c.exprs = append(c.exprs, l)
	return l, nil
}

// Pad the stream with NOPs up to a multiple of pow2 bytes.
func (c *Code) Align(pow2 int) (*Align, error) {
	if pow2 <= 0 || pow2&(pow2-1) != 0 {
		return nil, errors.Wrapf(ErrOperandType, "Alignment %d is not a power of 2", pow2)
	}
	a := &Align{index: len(c.exprs), pow2: pow2}
	c.exprs = append(c.exprs, a)
	return a, nil
}

// Lay out the stream, resolve label references and return the machine code.
func (c *Code) Compile() ([]byte, error) {
	syms := make(Symbols, len(c.labels))
	size := 0
	for _, e := range c.exprs {
		if l, ok := e.(*Label); ok {
			syms[l.name] = size
		}
		size += e.Size(size)
	}

	code := make([]byte, 0, size)
	for _, e := range c.exprs {
		var err error
		if code, err = e.Write(code, syms); err != nil {
			c.log.WithError(err).WithField("expression", e.Index()).Debug("Compilation failed")
			return nil, err
		}
	}
	c.log.WithFields(logrus.Fields{
		"expressions": len(c.exprs),
		"labels":      len(syms),
		"bytes":       len(code),
	}).Debug("Compiled code")
	return code, nil
}

// Render the stream, one expression per line.
func (c *Code) String() string {
	lines := make([]string, len(c.exprs))
	for i, e := range c.exprs {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

func (c *Code) inst(mnemonic string, ops Operands, lock bool) (Expression, error) {
	def, err := c.table.FindFeatures(strings.ToLower(mnemonic), ops, c.feats)
	if err != nil {
		return nil, c.fail(mnemonic, err)
	}
	return c.emit(def, ops, lock)
}

func (c *Code) emit(def *Definition, ops Operands, lock bool) (Expression, error) {
	if err := checkOperands(ops); err != nil {
		return nil, c.fail(def.Mnemonic, err)
	}
	e, err := c.factory(InstructionRequest{
		Def:      def,
		Operands: ops,
		Lock:     lock,
		Mode:     c.mode,
		Index:    len(c.exprs),
		Seq:      c.ninst,
	})
	if err != nil {
		return nil, c.fail(def.Mnemonic, err)
	}
	if e == nil {
		return nil, c.fail(def.Mnemonic, errors.Wrapf(ErrEncoding, "Instruction factory returned no expression"))
	}
	c.exprs = append(c.exprs, e)
	c.ninst++
	return e, nil
}

func (c *Code) fail(mnemonic string, err error) error {
	c.log.WithError(err).WithField("mnemonic", mnemonic).Debug("Instruction emission failed")
	return err
}

func checkOperands(ops Operands) error {
	if ops.Dst == nil && ops.Src != nil {
		return errors.Wrapf(ErrOperandType, "Source operand %s without a destination", ops.Src)
	}
	for _, op := range [...]Operand{ops.Dst, ops.Src} {
		if op == nil {
			continue
		}
		if k := op.Kind(); k != KindRegister && k != KindMemory {
			return errors.Wrapf(ErrOperandType, "Expected a register or memory operand, got %s %s", k, op)
		}
	}
	if ops.Imm != nil {
		if k := ops.Imm.Kind(); k != KindImmediate && k != KindDisplacement {
			return errors.Wrapf(ErrOperandType, "Expected an immediate or displacement, got %s %s", k, ops.Imm)
		}
	}
	return nil
}

// Coerce builder arguments into operands.
func operands(args ...Arg) (Operands, error) {
	var ops Operands
	if len(args) > 3 {
		return ops, errors.Wrapf(ErrOperandType, "Expected at most 3 operands, got %d", len(args))
	}
	var err error
	if len(args) > 0 {
		if ops.Dst, err = toRegOrMem(args[0]); err != nil {
			return ops, err
		}
	}
	if len(args) > 1 {
		switch args[1].(type) {
		case Reg, Mem:
			ops.Src = args[1].(Operand)
		default:
			if ops.Imm, err = toConstant(args[1]); err != nil {
				return ops, err
			}
		}
	}
	if len(args) > 2 {
		if ops.Imm != nil {
			return ops, errors.Wrapf(ErrOperandType, "Expected a register or memory source, got %v", args[1])
		}
		if ops.Imm, err = toConstant(args[2]); err != nil {
			return ops, err
		}
	}
	return ops, nil
}

func toRegOrMem(a Arg) (Operand, error) {
	switch v := a.(type) {
	case nil:
		return nil, nil
	case Reg:
		return v, nil
	case Mem:
		return v, nil
	case Immediate, Displacement, *Label:
		return nil, errors.Wrapf(ErrOperandType, "Expected a register or memory operand, got %v", a)
	}
	return memoryAt(a)
}

func toConstant(a Arg) (Operand, error) {
	switch v := a.(type) {
	case Immediate:
		return v, nil
	case Displacement:
		return v, nil
	case *Label:
		return v.Rel32(), nil
	case Pair:
		return ImmPair(v, true), nil
	}
	if v, signed, ok := integer(a); ok {
		if signed {
			return Imm(v), nil
		}
		return Uimm(uint64(v)), nil
	}
	return nil, errors.Wrapf(ErrOperandType, "Expected a constant, got %T", a)
}

func toDisplacement(a Arg) (Displacement, error) {
	switch v := a.(type) {
	case Displacement:
		return v, nil
	case *Label:
		return v.Rel32(), nil
	case Pair:
		return DispPair(v), nil
	}
	if v, _, ok := integer(a); ok {
		return Disp(v), nil
	}
	return Displacement{}, errors.Wrapf(ErrOperandType, "Expected a numeric displacement or low/high pair, got %T", a)
}

// Convert a Go integer to int64. Unsigned values which do not fit an int64 wrap.
func integer(a Arg) (v int64, signed bool, ok bool) {
	switch n := a.(type) {
	case int:
		return int64(n), true, true
	case int8:
		return int64(n), true, true
	case int16:
		return int64(n), true, true
	case int32:
		return int64(n), true, true
	case int64:
		return n, true, true
	case uint:
		return int64(n), false, true
	case uint8:
		return int64(n), false, true
	case uint16:
		return int64(n), false, true
	case uint32:
		return int64(n), false, true
	case uint64:
		return int64(n), false, true
	}
	return 0, false, false
}
