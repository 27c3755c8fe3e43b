package x64code

import (
	"testing"
)

func TestConstantWidth(t *testing.T) {
	for _, tc := range []struct {
		c     Constant
		width uint8
	}{
		{Imm(0).Constant, 1},
		{Imm(127).Constant, 1},
		{Imm(-128).Constant, 1},
		{Imm(128).Constant, 2},
		{Imm(-129).Constant, 2},
		{Imm(1 << 20).Constant, 4},
		{Imm(-1 << 31).Constant, 4},
		{Imm(1 << 40).Constant, 8},
		{Uimm(255).Constant, 1},
		{Uimm(256).Constant, 2},
		{Uimm(0xffffffff).Constant, 4},
		{Uimm(1 << 63).Constant, 8},
		{Disp(-8).Constant, 1},
		{Disp(0x1000).Constant, 2},
		{Ref("loop", 4).Constant, 4},
	} {
		if tc.c.Width() != tc.width {
			t.Fatalf("width of %s = %d, expected %d", tc.c, tc.c.Width(), tc.width)
		}
	}
}

func TestConstantString(t *testing.T) {
	for expect, c := range map[string]Constant{
		"0x19":               Imm(25).Constant,
		"-0x8":               Disp(-8).Constant,
		"0xffffffffffffffff": Uimm(1<<64 - 1).Constant,
		"loop":               Ref("loop", 1).Constant,
	} {
		if c.String() != expect {
			t.Fatalf("String() = %s, expected %s", c, expect)
		}
	}
	if name, ok := Ref("loop", 1).Label(); !ok || name != "loop" {
		t.Fatalf("Label() = %q, %v", name, ok)
	}
	if _, ok := Disp(8).Label(); ok {
		t.Fatal("unexpected label for a numeric displacement")
	}
}

func TestPair(t *testing.T) {
	p := SplitUint64(0x1122334455667788)
	if p.Lo != 0x55667788 || p.Hi != 0x11223344 {
		t.Fatalf("SplitUint64 = %#x", p)
	}
	if p.Uint64() != 0x1122334455667788 {
		t.Fatalf("Uint64() = %#x", p.Uint64())
	}
	if imm := ImmPair(Pair{Lo: 0xffffffff, Hi: 0xffffffff}, true); imm.Int64() != -1 || imm.Width() != 1 {
		t.Fatalf("signed pair = %d (width %d)", imm.Int64(), imm.Width())
	}
	if imm := ImmPair(Pair{Lo: 0xffffffff, Hi: 0xffffffff}, false); imm.Width() != 8 {
		t.Fatalf("unsigned pair width = %d", imm.Width())
	}
	if d := DispPair(Pair{Lo: 16}); d.Int64() != 16 || d.Pair() != (Pair{Lo: 16}) {
		t.Fatalf("DispPair = %s", d)
	}
}

func TestMemString(t *testing.T) {
	for expect, m := range map[string]Mem{
		"[rax]":                {Base: RAX},
		"[rbx+r15*2+0x8]":      {Base: RBX, Index: R15, Scale: 2, Disp: Disp(8)},
		"[rbx+rcx*1]":          {Base: RBX, Index: RCX},
		"[rbp-0x8]":            {Base: RBP, Disp: Disp(-8)},
		"[rcx*8+0x10]":         {Index: RCX, Scale: 8, Disp: Disp(16)},
		"[0x1000]":             {Disp: Disp(0x1000)},
		"[rip+data]":           {Base: RIP, Disp: Ref("data", 4)},
		"[0x1122334455667788]": {Disp: Disp(0x1122334455667788)},
	} {
		if m.String() != expect {
			t.Fatalf("String() = %s, expected %s", m, expect)
		}
	}
}

func TestMemDisplace(t *testing.T) {
	m := Mem{Base: RSP, Width: 8}
	if m.HasDisp() {
		t.Fatal("unexpected displacement")
	}
	d := m.Displace(24)
	if !d.HasDisp() || d.Disp.Int64() != 24 || d.Base != RSP || d.Width != 8 {
		t.Fatalf("Displace(24) = %s", d)
	}
	if m.HasDisp() {
		t.Fatal("Displace modified the receiver")
	}
	if d = m.DisplacePair(SplitUint64(1 << 32)); d.Disp.Width() != 8 {
		t.Fatalf("DisplacePair width = %d", d.Disp.Width())
	}
	if !(Mem{Disp: Disp(1)}).IsAbsolute() || (Mem{Base: RAX}).IsAbsolute() {
		t.Fatal("unexpected IsAbsolute")
	}
}

func TestOperandsList(t *testing.T) {
	ops := Operands{Dst: RAX, Imm: Imm(1)}
	list := ops.List()
	if len(list) != 2 || list[0] != Operand(RAX) || list[1].Kind() != KindImmediate {
		t.Fatalf("List() = %v", list)
	}
	if len((Operands{}).List()) != 0 {
		t.Fatal("expected an empty list")
	}
}

func TestRegs(t *testing.T) {
	for _, tc := range []struct {
		r      Reg
		name   string
		width  uint8
		num    uint8
		family uint8
	}{
		{AL, "al", 1, 0, REG_LEGACY},
		{AH, "ah", 1, 4, REG_HIGHBYTE},
		{SIL, "sil", 1, 6, REG_LEGACY},
		{R8W, "r8w", 2, 8, REG_LEGACY},
		{R13D, "r13d", 4, 13, REG_LEGACY},
		{RSP, "rsp", 8, 4, REG_LEGACY},
		{RIP, "rip", 8, 0, REG_RIP},
	} {
		if tc.r.String() != tc.name || tc.r.Width() != tc.width || tc.r.Num() != tc.num || tc.r.Family() != tc.family {
			t.Fatalf("%s: width %d, num %d, family %d", tc.r, tc.r.Width(), tc.r.Num(), tc.r.Family())
		}
		if r, ok := RegByName(tc.name); !ok || r != tc.r {
			t.Fatalf("RegByName(%q) = %s, %v", tc.name, r, ok)
		}
	}
	if !R9.IsExtended() || RDI.IsExtended() || !SIL.needsRex() || AH.needsRex() {
		t.Fatal("unexpected register properties")
	}
	if _, ok := RegByName("xmm0"); ok {
		t.Fatal("unexpected register xmm0")
	}
}

func TestClassAccepts(t *testing.T) {
	for _, tc := range []struct {
		class  Class
		op     Operand
		accept bool
	}{
		{Reg64, RAX, true},
		{Reg64, EAX, false},
		{Reg8, AH, true},
		{Reg64, RIP, false},
		{Mem64, Mem{Base: RAX}, true},
		{Mem64, Mem{Base: RAX, Width: 8}, true},
		{Mem64, Mem{Base: RAX, Width: 4}, false},
		{Mem8, Mem{Base: RAX}, true},
		{AnyMem, Mem{Base: RAX, Width: 2}, true},
		{Mem64, Mem{Disp: Disp(1 << 40)}, false},
		{AnyMem, Mem{Disp: Disp(1 << 40)}, false},
		{MemOffset, Mem{Disp: Disp(1 << 40)}, true},
		{MemOffset, Mem{Base: RAX}, false},
		{RegMem64, RBX, true},
		{RegMem64, Mem{Base: RBX}, true},
		{Imm8, Imm(1), true},
		{Imm8, Imm(256), false},
		{Imm8, Imm(200), true},
		{Imm8, Imm(-129), false},
		{Imm32, Uimm(0xffffffff), true},
		{Imm8, Uimm(255), true},
		{Imm16, Imm(-1), true},
		{Imm32, Imm(1 << 40), false},
		{Imm64, Imm(1 << 40), true},
		{SImm8, Imm(-1), true},
		{SImm8, Uimm(255), false},
		{SImm32, Uimm(0x7fffffff), true},
		{SImm32, Uimm(0xffffffff), false},
		{SImm32, Imm(-1 << 31), true},
		{Rel8, Disp(-4), true},
		{Rel8, Disp(1000), false},
		{Rel8, Ref("l", 1), true},
		{Rel8, Ref("l", 4), false},
		{Rel32, Ref("l", 4), true},
		{Rel32, Disp(1 << 40), false},
		{Imm32, Disp(1), false},
		{Rel32, Imm(1), false},
	} {
		if tc.class.Accepts(tc.op) != tc.accept {
			t.Fatalf("%s accepts %s = %v, expected %v", tc.class, tc.op, !tc.accept, tc.accept)
		}
	}
}

func TestMatchers(t *testing.T) {
	if RegMem64.String() != "reg64|mem64" || Class(0).String() != "none" {
		t.Fatalf("unexpected class names %s, %s", RegMem64, Class(0))
	}
	if c, ok := ClassByName("simm8"); !ok || c != SImm8 {
		t.Fatalf("ClassByName(simm8) = %s, %v", c, ok)
	}
	if _, ok := ClassByName("reg128"); ok {
		t.Fatal("unexpected class reg128")
	}

	slot := Slot{Exact(CL), OfClass(Imm8)}
	if slot.String() != "cl/imm8" {
		t.Fatalf("String() = %s", slot)
	}
	if !slot.Match(CL) || slot.Match(DL) || !slot.Match(Imm(1)) {
		t.Fatal("unexpected slot match")
	}
	if !slot.matchExact(CL) || slot.matchExact(Imm(1)) {
		t.Fatal("unexpected exact match")
	}
	if r, ok := Exact(CL).Reg(); !ok || r != CL {
		t.Fatal("expected an exact register")
	}
	if _, ok := OfClass(Reg8).Reg(); ok || OfClass(Reg8).Class() != Reg8 {
		t.Fatal("expected a class matcher")
	}
	if !R(AX, EAX).Match(EAX) || R(AX, EAX).Match(RAX) {
		t.Fatal("unexpected register-list match")
	}
}
