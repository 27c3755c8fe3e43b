package x64code

import (
	"github.com/wdamron/x64code/feats"
	flags "github.com/wdamron/x64code/internal/flags"
)

// DefaultGlobals are the process-wide defaults layered under every built-in definition:
// instructions are not lockable and encode their register operands through ModRM.
var DefaultGlobals = Config{Clear: flags.LOCK | flags.REG_IN_OP}

// DefaultTable is the built-in definition table.
var DefaultTable = NewDefTable(BuiltinRaw(), DefaultGlobals)

var (
	tR8     = S(Reg8)
	tR16    = S(Reg16)
	tR32    = S(Reg32)
	tR64    = S(Reg64)
	tRM8    = S(RegMem8)
	tRM16   = S(RegMem16)
	tRM32   = S(RegMem32)
	tRM64   = S(RegMem64)
	tM8     = S(Mem8)
	tM16    = S(Mem16)
	tM32    = S(Mem32)
	tM64    = S(Mem64)
	tMem    = S(AnyMem)
	tMoffs  = S(MemOffset)
	tI8     = S(Imm8)
	tI16    = S(Imm16)
	tI32    = S(Imm32)
	tI64    = S(Imm64)
	tS8     = S(SImm8)
	tS32    = S(SImm32)
	tRel8   = S(Rel8)
	tRel32  = S(Rel32)
	tCL     = R(CL)
	tNoArgs = []Slot{}
)

// operand shapes of one operand size above 8 bits
type sizeClass struct {
	size uint8
	acc  Reg  // accumulator
	r    Slot // register
	m    Slot // memory
	rm   Slot // register or memory
	imm  Slot // full-size immediate, sign-extended for 64-bit operands
	immW uint8
}

var wideSizes = [...]sizeClass{
	{16, AX, tR16, tM16, tRM16, tI16, 2},
	{32, EAX, tR32, tM32, tRM32, tI32, 4},
	{64, RAX, tR64, tM64, tRM64, tS32, 4},
}

func op(b ...byte) []byte { return b }

func ops(s ...Slot) []Slot { return s }

// BuiltinRaw returns the raw built-in table. Each call returns a fresh table which may be
// modified or overlaid before it is passed to NewDefTable.
func BuiltinRaw() RawTable {
	t := RawTable{
		"nop":     {{Opcode: op(0x90), Ops: tNoArgs}},
		"ret":     {{}, {Opcode: op(0xc3), Ops: tNoArgs}, {Opcode: op(0xc2), Imm: 2, Ops: ops(tI16)}},
		"int3":    {{Opcode: op(0xcc), Ops: tNoArgs}},
		"int":     {{Opcode: op(0xcd), Imm: 1, Ops: ops(tI8)}},
		"syscall": {{Opcode: op(0x0f, 0x05), Ops: tNoArgs}},
		"hlt":     {{Opcode: op(0xf4), Ops: tNoArgs}},
		"leave":   {{Opcode: op(0xc9), Ops: tNoArgs}},
		"cwd":     {{Opcode: op(0x99), Size: 16, Ops: tNoArgs}},
		"cdq":     {{Opcode: op(0x99), Size: 32, Ops: tNoArgs}},
		"cqo":     {{Opcode: op(0x99), Size: 64, Ops: tNoArgs}},
		"cwde":    {{Opcode: op(0x98), Size: 32, Ops: tNoArgs}},
		"cdqe":    {{Opcode: op(0x98), Size: 64, Ops: tNoArgs}},
		"cpuid":   {{Opcode: op(0x0f, 0xa2), Feats: feats.CPUID, Ops: tNoArgs}},
		"rdtsc":   {{Opcode: op(0x0f, 0x31), Feats: feats.RDTSC, Ops: tNoArgs}},

		"push": {
			{Size: 64, Set: flags.DEF64},
			{Opcode: op(0x50), Set: flags.REG_IN_OP, Ops: ops(tR64)},
			{Opcode: op(0x50), Size: 16, Set: flags.REG_IN_OP, Ops: ops(tR16)},
			{Opcode: op(0x6a), Imm: 1, Ops: ops(tS8)},
			{Opcode: op(0x68), Imm: 4, Ops: ops(tS32)},
			{Opcode: op(0xff), Ext: Digit(6), Ops: ops(tM64)},
		},
		"pop": {
			{Size: 64, Set: flags.DEF64},
			{Opcode: op(0x58), Set: flags.REG_IN_OP, Ops: ops(tR64)},
			{Opcode: op(0x58), Size: 16, Set: flags.REG_IN_OP, Ops: ops(tR16)},
			{Opcode: op(0x8f), Ext: Digit(0), Ops: ops(tM64)},
		},

		"lea": {
			{Set: flags.ENC_RM},
			{Opcode: op(0x8d), Size: 16, Ops: ops(tR16, tMem)},
			{Opcode: op(0x8d), Size: 32, Ops: ops(tR32, tMem)},
			{Opcode: op(0x8d), Size: 64, Ops: ops(tR64, tMem)},
		},
		"movzx": {
			{Set: flags.ENC_RM},
			{Opcode: op(0x0f, 0xb6), Size: 16, Ops: ops(tR16, tRM8)},
			{Opcode: op(0x0f, 0xb6), Size: 32, Ops: ops(tR32, tRM8)},
			{Opcode: op(0x0f, 0xb6), Size: 64, Ops: ops(tR64, tRM8)},
			{Opcode: op(0x0f, 0xb7), Size: 32, Ops: ops(tR32, tRM16)},
			{Opcode: op(0x0f, 0xb7), Size: 64, Ops: ops(tR64, tRM16)},
		},
		"movsx": {
			{Set: flags.ENC_RM},
			{Opcode: op(0x0f, 0xbe), Size: 16, Ops: ops(tR16, tRM8)},
			{Opcode: op(0x0f, 0xbe), Size: 32, Ops: ops(tR32, tRM8)},
			{Opcode: op(0x0f, 0xbe), Size: 64, Ops: ops(tR64, tRM8)},
			{Opcode: op(0x0f, 0xbf), Size: 32, Ops: ops(tR32, tRM16)},
			{Opcode: op(0x0f, 0xbf), Size: 64, Ops: ops(tR64, tRM16)},
		},
		"movsxd": {{Opcode: op(0x63), Size: 64, Set: flags.ENC_RM, Ops: ops(tR64, tRM32)}},

		"jmp": {
			{},
			{Opcode: op(0xeb), Imm: 1, Ops: ops(tRel8)},
			{Opcode: op(0xe9), Imm: 4, Ops: ops(tRel32)},
			{Opcode: op(0xff), Ext: Digit(4), Size: 64, Set: flags.DEF64, Ops: ops(tRM64)},
		},
		"call": {
			{},
			{Opcode: op(0xe8), Imm: 4, Ops: ops(tRel32)},
			{Opcode: op(0xff), Ext: Digit(2), Size: 64, Set: flags.DEF64, Ops: ops(tRM64)},
		},
	}

	t["mov"] = movGroup()
	t["test"] = testGroup()
	t["imul"] = imulGroup()

	for i, mn := range [...]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"} {
		t[mn] = aluGroup(byte(i)<<3, uint8(i), mn != "cmp")
	}
	for _, u := range [...]struct {
		mn    string
		digit uint8
		lock  bool
	}{
		{"not", 2, true}, {"neg", 3, true}, {"mul", 4, false}, {"div", 6, false}, {"idiv", 7, false},
	} {
		t[u.mn] = unaryGroup(0xf6, u.digit, u.lock)
	}
	t["inc"] = unaryGroup(0xfe, 0, true)
	t["dec"] = unaryGroup(0xfe, 1, true)

	for _, s := range [...]struct {
		mn    string
		digit uint8
	}{
		{"rol", 0}, {"ror", 1}, {"rcl", 2}, {"rcr", 3}, {"shl", 4}, {"sal", 4}, {"shr", 5}, {"sar", 7},
	} {
		t[s.mn] = shiftGroup(s.digit)
	}

	t["xchg"] = exchangeGroup(0x86)
	t["xadd"] = exchangeGroup(0x0f, 0xc0)
	t["cmpxchg"] = exchangeGroup(0x0f, 0xb0)

	t["bsf"] = bitScanGroup(0, op(0x0f, 0xbc), feats.X64_IMPLICIT)
	t["bsr"] = bitScanGroup(0, op(0x0f, 0xbd), feats.X64_IMPLICIT)
	t["tzcnt"] = bitScanGroup(0xf3, op(0x0f, 0xbc), feats.BMI1)
	t["lzcnt"] = bitScanGroup(0xf3, op(0x0f, 0xbd), feats.LZCNT)
	t["popcnt"] = bitScanGroup(0xf3, op(0x0f, 0xb8), feats.POPCNT)

	for cc := ConditionCode(0); cc < 16; cc++ {
		for _, suffix := range ccSuffixes[cc] {
			t["j"+suffix] = []Config{
				{Mnemonic: cc.Jump()},
				{Opcode: op(0x70 + byte(cc)), Imm: 1, Ops: ops(tRel8)},
				{Opcode: op(0x0f, 0x80+byte(cc)), Imm: 4, Ops: ops(tRel32)},
			}
			t["set"+suffix] = []Config{
				{Mnemonic: cc.Set(), Opcode: op(0x0f, 0x90+byte(cc)), Ext: Digit(0), Size: 8, Ops: ops(tRM8)},
			}
			cmov := []Config{{Mnemonic: cc.Move(), Opcode: op(0x0f, 0x40+byte(cc)), Feats: feats.CMOV, Set: flags.ENC_RM}}
			for _, s := range wideSizes {
				cmov = append(cmov, Config{Size: s.size, Ops: ops(s.r, s.rm)})
			}
			t["cmov"+suffix] = cmov
		}
	}

	return t
}

// Build the add/or/adc/sbb/and/sub/xor/cmp group. base is the opcode of the r/m8, r8 form and
// digit is the /digit of the 80/81/83 forms.
func aluGroup(base byte, digit uint8, lockable bool) []Config {
	group := Config{}
	if lockable {
		group.Set = flags.LOCK
	}
	ext := Digit(digit)
	variants := []Config{
		group,
		{Opcode: op(base + 4), Size: 8, Imm: 1, Clear: flags.LOCK, Ops: ops(R(AL), tI8)},
		{Opcode: op(0x80), Ext: ext, Size: 8, Imm: 1, Ops: ops(tRM8, tI8)},
		{Opcode: op(base), Size: 8, Set: flags.DBIT, Ops: ops(tRM8, tR8)},
		{Opcode: op(base), Size: 8, Set: flags.DBIT, Clear: flags.LOCK, Ops: ops(tR8, tM8)},
	}
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0x83), Ext: ext, Size: s.size, Imm: 1, Ops: ops(s.rm, tS8)},
			Config{Opcode: op(base + 5), Size: s.size, Imm: s.immW, Clear: flags.LOCK, Ops: ops(R(s.acc), s.imm)},
			Config{Opcode: op(0x81), Ext: ext, Size: s.size, Imm: s.immW, Ops: ops(s.rm, s.imm)},
			Config{Opcode: op(base + 1), Size: s.size, Set: flags.DBIT, Ops: ops(s.rm, s.r)},
			Config{Opcode: op(base + 1), Size: s.size, Set: flags.DBIT, Clear: flags.LOCK, Ops: ops(s.r, s.m)},
		)
	}
	return variants
}

func movGroup() []Config {
	variants := []Config{
		{Set: flags.DBIT},
		{Opcode: op(0x88), Size: 8, Ops: ops(tRM8, tR8)},
		{Opcode: op(0x88), Size: 8, Ops: ops(tR8, tM8)},
		{Opcode: op(0xb0), Size: 8, Imm: 1, Set: flags.REG_IN_OP, Ops: ops(tR8, tI8)},
		{Opcode: op(0xc6), Ext: Digit(0), Size: 8, Imm: 1, Ops: ops(tM8, tI8)},
	}
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0x89), Size: s.size, Ops: ops(s.rm, s.r)},
			Config{Opcode: op(0x89), Size: s.size, Ops: ops(s.r, s.m)},
		)
		if s.size == 64 {
			variants = append(variants,
				Config{Opcode: op(0xc7), Ext: Digit(0), Size: 64, Imm: 4, Ops: ops(tRM64, tS32)},
				Config{Opcode: op(0xb8), Size: 64, Imm: 8, Set: flags.REG_IN_OP, Ops: ops(tR64, tI64)},
			)
			continue
		}
		variants = append(variants,
			Config{Opcode: op(0xb8), Size: s.size, Imm: s.immW, Set: flags.REG_IN_OP, Ops: ops(s.r, s.imm)},
			Config{Opcode: op(0xc7), Ext: Digit(0), Size: s.size, Imm: s.immW, Ops: ops(s.m, s.imm)},
		)
	}
	// memory-offset forms: only reached by absolute addresses which do not fit 32 bits
	variants = append(variants,
		Config{Opcode: op(0xa0), Size: 8, Set: flags.MOFFS, Ops: ops(R(AL), tMoffs)},
		Config{Opcode: op(0xa2), Size: 8, Set: flags.MOFFS, Ops: ops(tMoffs, R(AL))},
	)
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0xa1), Size: s.size, Set: flags.MOFFS, Ops: ops(R(s.acc), tMoffs)},
			Config{Opcode: op(0xa3), Size: s.size, Set: flags.MOFFS, Ops: ops(tMoffs, R(s.acc))},
		)
	}
	return variants
}

func testGroup() []Config {
	variants := []Config{
		{},
		{Opcode: op(0xa8), Size: 8, Imm: 1, Ops: ops(R(AL), tI8)},
		{Opcode: op(0xf6), Ext: Digit(0), Size: 8, Imm: 1, Ops: ops(tRM8, tI8)},
		{Opcode: op(0x84), Size: 8, Ops: ops(tRM8, tR8)},
	}
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0xa9), Size: s.size, Imm: s.immW, Ops: ops(R(s.acc), s.imm)},
			Config{Opcode: op(0xf7), Ext: Digit(0), Size: s.size, Imm: s.immW, Ops: ops(s.rm, s.imm)},
			Config{Opcode: op(0x85), Size: s.size, Ops: ops(s.rm, s.r)},
		)
	}
	return variants
}

func imulGroup() []Config {
	variants := []Config{
		{},
		{Opcode: op(0xf6), Ext: Digit(5), Size: 8, Ops: ops(tRM8)},
	}
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0xf7), Ext: Digit(5), Size: s.size, Ops: ops(s.rm)},
			Config{Opcode: op(0x0f, 0xaf), Size: s.size, Set: flags.ENC_RM, Ops: ops(s.r, s.rm)},
			Config{Opcode: op(0x6b), Size: s.size, Imm: 1, Set: flags.ENC_RM, Ops: ops(s.r, s.rm, tS8)},
			Config{Opcode: op(0x69), Size: s.size, Imm: s.immW, Set: flags.ENC_RM, Ops: ops(s.r, s.rm, s.imm)},
		)
	}
	return variants
}

// Build a group of one-operand instructions encoded as base /digit (8-bit) and base+1 /digit.
func unaryGroup(base byte, digit uint8, lockable bool) []Config {
	group := Config{Ext: Digit(digit)}
	if lockable {
		group.Set = flags.LOCK
	}
	variants := []Config{group, {Opcode: op(base), Size: 8, Ops: ops(tRM8)}}
	for _, s := range wideSizes {
		variants = append(variants, Config{Opcode: op(base + 1), Size: s.size, Ops: ops(s.rm)})
	}
	return variants
}

func shiftGroup(digit uint8) []Config {
	variants := []Config{
		{Ext: Digit(digit)},
		{Opcode: op(0xd2), Size: 8, Ops: ops(tRM8, tCL)},
		{Opcode: op(0xc0), Size: 8, Imm: 1, Ops: ops(tRM8, tI8)},
	}
	for _, s := range wideSizes {
		variants = append(variants,
			Config{Opcode: op(0xd3), Size: s.size, Ops: ops(s.rm, tCL)},
			Config{Opcode: op(0xc1), Size: s.size, Imm: 1, Ops: ops(s.rm, tI8)},
		)
	}
	return variants
}

// Build xchg/xadd/cmpxchg: an r/m, r form whose 8-bit opcode ends in an even byte.
func exchangeGroup(opcode ...byte) []Config {
	wide := append([]byte(nil), opcode...)
	wide[len(wide)-1]++
	variants := []Config{
		{Set: flags.LOCK},
		{Opcode: opcode, Size: 8, Ops: ops(tRM8, tR8)},
	}
	for _, s := range wideSizes {
		variants = append(variants, Config{Opcode: wide, Size: s.size, Ops: ops(s.rm, s.r)})
	}
	return variants
}

func bitScanGroup(prefix byte, opcode []byte, feat feats.Feature) []Config {
	variants := []Config{{Opcode: opcode, Prefix: prefix, Feats: feat, Set: flags.ENC_RM}}
	for _, s := range wideSizes {
		variants = append(variants, Config{Size: s.size, Ops: ops(s.r, s.rm)})
	}
	return variants
}
