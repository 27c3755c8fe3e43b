package x64code

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// Hard-coded instruction sequences are manually verified through the following tools:
//   * ODA: https://onlinedisassembler.com/odaweb/
//   * Shell-Storm: http://shell-storm.org/online/Online-Assembler-and-Disassembler/

func TestEncode(t *testing.T) {
	var code []byte
	_expect := func(s string, mode int) {
		decoded, err := x86asm.Decode(code, mode)
		if err != nil {
			t.Logf("encoded inst = %#x\n", code)
			t.Fatal(err)
		}
		if decoded.Len != len(code) {
			t.Fatalf("decoded %d of %d bytes of %#x", decoded.Len, len(code), code)
		}
		intel := x86asm.IntelSyntax(decoded, 0, nil)
		if intel != s {
			t.Logf("encoded inst = %#x\n", code)
			t.Fatalf("decoded inst = %s != %s", intel, s)
		}
	}
	assemble := func(mode Mode, emit func(c *Code) (Expression, error)) {
		c := New(WithMode(mode))
		if _, err := emit(c); err != nil {
			t.Fatal(err)
		}
		var err error
		if code, err = c.Compile(); err != nil {
			t.Fatal(err)
		}
	}
	check := func(expect string, mnemonic string, args ...Arg) {
		assemble(ModeLong, func(c *Code) (Expression, error) { return c.Inst(mnemonic, args...) })
		_expect(expect, 64)
	}
	checkmode := func(expect string, mode Mode, mnemonic string, args ...Arg) {
		assemble(mode, func(c *Code) (Expression, error) { return c.Inst(mnemonic, args...) })
		_expect(expect, int(mode))
	}
	checkjump := func(expect string, mnemonic string, target Arg) {
		assemble(ModeLong, func(c *Code) (Expression, error) { return c.Jump(mnemonic, target) })
		_expect(expect, 64)
	}
	checkimm := func(expect string, mnemonic string, imm int64) {
		assemble(ModeLong, func(c *Code) (Expression, error) { return c.Immediate(mnemonic, imm) })
		_expect(expect, 64)
	}
	checklock := func(expect string, mnemonic string, args ...Arg) {
		assemble(ModeLong, func(c *Code) (Expression, error) { return c.Lock(mnemonic, args...) })
		_expect(expect, 64)
	}

	check("mov al, 0x1", "mov", AL, 1)
	check("mov ah, 0x1", "mov", AH, 1)
	check("mov ax, 0x1", "mov", AX, 1)
	check("mov eax, 0x19", "mov", EAX, 25)
	check("mov rax, 0x19", "mov", RAX, 25)
	check("mov rax, -0x1", "mov", RAX, -1)
	check("mov rax, 0xffffffff", "mov", RAX, uint32(0xffffffff)) // not sign-extendable from 32 bits
	check("mov rax, 0x7fffffffffffffff", "mov", RAX, int64(0x7fffffffffffffff))
	check("mov rax, r13", "mov", RAX, R13)
	check("mov sil, al", "mov", SIL, AL)
	check("mov r8b, byte ptr [rdi]", "mov", R8B, Mem{Base: RDI})
	check("add rax, rbx", "add", RAX, RBX)
	check("add rax, 0x1", "add", RAX, 1)
	check("add rax, 0x1000", "add", RAX, 0x1000)
	check("add rcx, 0x1000", "add", RCX, 0x1000)
	check("add al, 0x1", "add", AL, 1)
	check("add byte ptr [rax], 0x1", "add", Mem{Base: RAX}, 1)
	check("add qword ptr [rax], 0x1", "add", Mem{Base: RAX, Width: 8}, 1)
	check("add rax, qword ptr [rbx]", "add", RAX, Mem{Base: RBX})
	check("xor rax, rbx", "xor", RAX, RBX)
	check("sub esp, 0x8", "sub", ESP, 8)
	check("cmp r8, r9", "cmp", R8, R9)
	check("test eax, eax", "test", EAX, EAX)
	check("mov rax, qword ptr [rbx]", "mov", RAX, Mem{Base: RBX})
	check("mov qword ptr [rax], rbx", "mov", Mem{Base: RAX}, RBX)
	check("mov qword ptr [r13], rbx", "mov", Mem{Base: R13}, RBX)
	check("mov qword ptr [rsp], rax", "mov", Mem{Base: RSP}, RAX)
	check("mov rax, qword ptr [rbx+r15*1]", "mov", RAX, Mem{Base: RBX, Index: R15})
	check("mov rax, qword ptr [rbx+r15*2+0x8]", "mov", RAX, Mem{Base: RBX, Index: R15, Scale: 2, Disp: Disp(8)})
	check("mov rax, qword ptr [rbx+r15*2+0x1000]", "mov", RAX, Mem{Base: RBX, Index: R15, Scale: 2, Disp: Disp(0x1000)})
	check("mov rax, qword ptr [rbx-0x8]", "mov", RAX, Mem{Base: RBX, Disp: Disp(-8)})
	check("mov eax, dword ptr [0x1000]", "mov", EAX, Mem{Disp: Disp(0x1000)})
	check("mov rax, qword ptr [0x1122334455667788]", "mov", RAX, Mem{Disp: Disp(0x1122334455667788)})
	check("mov qword ptr [0x1122334455667788], rax", "mov", Mem{Disp: Disp(0x1122334455667788)}, RAX)
	check("mov dword ptr [rsp+0x8], 0x2a", "mov", Mem{Base: RSP, Disp: Disp(8), Width: 4}, 42)
	check("mov rax, qword ptr [ebx]", "mov", RAX, Mem{Base: EBX})
	check("lea rax, ptr [rbx+r15*2+0x8]", "lea", RAX, Mem{Base: RBX, Index: R15, Scale: 2, Disp: Disp(8)})
	check("lea rax, ptr [rip+0x10]", "lea", RAX, Mem{Base: RIP, Disp: Disp(16)})
	check("movzx eax, byte ptr [rdi]", "movzx", EAX, Mem{Base: RDI, Width: 1})
	check("movsx rax, cx", "movsx", RAX, CX)
	check("movsxd rax, ecx", "movsxd", RAX, ECX)
	check("imul rax, rbx", "imul", RAX, RBX)
	check("imul eax, ecx, 0x64", "imul", EAX, ECX, 100)
	check("shl rax, cl", "shl", RAX, CL)
	check("sar ecx, 0x3", "sar", ECX, 3)
	check("inc qword ptr [rax]", "inc", Mem{Base: RAX, Width: 8})
	check("neg rax", "neg", RAX)
	check("push r12", "push", R12)
	check("pop rbp", "pop", RBP)
	check("setz al", "sete", AL)
	check("setnz al", "setnz", AL)
	check("cmovnz rax, rbx", "cmovne", RAX, RBX)
	check("xchg qword ptr [rax], rbx", "xchg", Mem{Base: RAX}, RBX)
	check("tzcnt rax, rbx", "tzcnt", RAX, RBX)
	check("popcnt ecx, dword ptr [rsi]", "popcnt", ECX, Mem{Base: RSI})
	check("cqo", "cqo")
	check("ret", "ret")
	check("syscall", "syscall")

	checkimm("push 0x10", "push", 16)
	checkimm("ret 0x8", "ret", 8)
	checkimm("int 0x80", "int", 0x80)

	checkjump("jz .+0x4", "jz", Disp(4))
	checkjump("jz .-0x4", "je", Disp(-4))
	checkjump("jz .+0x8000", "jz", Disp(32768))
	checkjump("jz .-0x8000", "jz", Disp(-32768))
	checkjump("jmp .+0x7f", "jmp", Disp(127))
	checkjump("call .+0x100", "call", Disp(256))
	checkjump("jmp qword ptr [rax]", "jmp", Mem{Base: RAX})
	checkjump("call rax", "call", RAX)

	checklock("lock add qword ptr [rax], rbx", "add", Mem{Base: RAX}, RBX)
	checklock("lock xadd dword ptr [rdi], ecx", "xadd", Mem{Base: RDI}, ECX)
	checklock("lock inc qword ptr [rax]", "inc", Mem{Base: RAX, Width: 8})

	checkmode("mov ax, bx", ModeReal, "mov", AX, BX)
	checkmode("mov eax, ebx", ModeReal, "mov", EAX, EBX)
	checkmode("mov eax, ebx", ModeCompat, "mov", EAX, EBX)
	checkmode("mov ax, bx", ModeCompat, "mov", AX, BX)
	checkmode("mov eax, dword ptr [ebp+0x8]", ModeCompat, "mov", EAX, Mem{Base: EBP, Disp: Disp(8)})
	checkmode("mov eax, dword ptr [0x1000]", ModeCompat, "mov", EAX, Mem{Disp: Disp(0x1000)})
	checkmode("add ecx, 0x1", ModeCompat, "add", ECX, 1)
}

func TestEncodeBytes(t *testing.T) {
	for _, tc := range []struct {
		expect   string
		mnemonic string
		args     []Arg
	}{
		{"0x4889d8", "mov", []Arg{RAX, RBX}},
		{"0x48c7c019000000", "mov", []Arg{RAX, 25}},
		{"0xb819000000", "mov", []Arg{EAX, 25}},
		{"0x48b8ffffffff00000000", "mov", []Arg{RAX, uint32(0xffffffff)}},
		{"0x48a18877665544332211", "mov", []Arg{RAX, Mem{Disp: Disp(0x1122334455667788)}}},
		{"0x488b042500100000", "mov", []Arg{RAX, Mem{Disp: Disp(0x1000)}}},
		{"0x498b4500", "mov", []Arg{RAX, Mem{Base: R13}}},
		{"0x4a8b04bb", "mov", []Arg{RAX, Mem{Base: RBX, Index: R15, Scale: 4}}},
		{"0x488b04cd10000000", "mov", []Arg{RAX, Mem{Index: RCX, Scale: 8, Disp: Disp(16)}}},
		{"0x4883c001", "add", []Arg{RAX, 1}},
		{"0x480580000000", "add", []Arg{RAX, 128}},
		{"0xf3480fbcc3", "tzcnt", []Arg{RAX, RBX}},
		{"0x0f94c0", "sete", []Arg{AL}},
		{"0x4154", "push", []Arg{R12}},
		{"0x6650", "push", []Arg{AX}},
		{"0x40b601", "mov", []Arg{SIL, 1}},
	} {
		c := New()
		if _, err := c.Inst(tc.mnemonic, tc.args...); err != nil {
			t.Fatalf("%s %v: %v", tc.mnemonic, tc.args, err)
		}
		code, err := c.Compile()
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprintf("%#x", code) != tc.expect {
			t.Fatalf("%s %v = %#x != %s", tc.mnemonic, tc.args, code, tc.expect)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		mode Mode
		lock bool
		mn   string
		args []Arg
		err  error
	}{
		{"high byte with rex register", ModeLong, false, "mov", []Arg{AH, R8B}, ErrEncoding},
		{"high byte with sil", ModeLong, false, "mov", []Arg{AH, SIL}, ErrEncoding},
		{"high byte with 64-bit operand", ModeLong, false, "movzx", []Arg{RAX, AH}, ErrEncoding},
		{"64-bit operand in compat mode", ModeCompat, false, "mov", []Arg{RAX, RBX}, ErrEncoding},
		{"extended register in compat mode", ModeCompat, false, "mov", []Arg{R8D, EAX}, ErrEncoding},
		{"rip-relative in compat mode", ModeCompat, false, "lea", []Arg{EAX, Mem{Base: RIP}}, ErrEncoding},
		{"64-bit address in compat mode", ModeCompat, false, "mov", []Arg{EAX, Mem{Base: RBX}}, ErrEncoding},
		{"64-bit absolute address in compat mode", ModeCompat, false, "mov", []Arg{EAX, Mem{Disp: DispPair(Pair{Lo: 0x10, Hi: 0x1})}}, ErrEncoding},
		{"32-bit absolute address in real mode", ModeReal, false, "mov", []Arg{AX, Mem{Disp: DispPair(Pair{Lo: 0x10, Hi: 0x1})}}, ErrEncoding},
		{"16-bit address", ModeLong, false, "mov", []Arg{EAX, Mem{Base: BX}}, ErrEncoding},
		{"rsp index", ModeLong, false, "mov", []Arg{RAX, Mem{Base: RBX, Index: RSP}}, ErrEncoding},
		{"invalid scale", ModeLong, false, "mov", []Arg{RAX, Mem{Base: RBX, Index: RCX, Scale: 3}}, ErrEncoding},
		{"mixed address widths", ModeLong, false, "mov", []Arg{RAX, Mem{Base: RBX, Index: ECX}}, ErrEncoding},
		{"rip with index", ModeLong, false, "lea", []Arg{RAX, Mem{Base: RIP, Index: RCX}}, ErrEncoding},
		{"label without rip", ModeLong, false, "mov", []Arg{RAX, Mem{Base: RBX, Disp: Ref("l", 4)}}, ErrEncoding},
		{"lock on mov", ModeLong, true, "mov", []Arg{Mem{Base: RAX}, RBX}, ErrEncoding},
		{"lock on cmp", ModeLong, true, "cmp", []Arg{Mem{Base: RAX}, RBX}, ErrEncoding},
		{"lock on register destination", ModeLong, true, "add", []Arg{RAX, Mem{Base: RBX}}, ErrEncoding},
		{"operand size", ModeLong, false, "mov", []Arg{AL, RBX}, ErrNoMatch},
		{"immediate too wide", ModeLong, false, "add", []Arg{RAX, int64(1 << 40)}, ErrNoMatch},
		{"unsigned immediate too wide", ModeLong, false, "add", []Arg{RAX, uint32(0x80000000)}, ErrNoMatch},
		{"64-bit displacement", ModeLong, false, "mov", []Arg{RAX, Mem{Base: RBX, Disp: Disp(1 << 40)}}, ErrNoMatch},
		{"64-bit absolute address to non-accumulator", ModeLong, false, "mov", []Arg{RCX, Mem{Disp: Disp(1 << 40)}}, ErrNoMatch},
		{"unknown mnemonic", ModeLong, false, "frobnicate", nil, ErrUnknownMnemonic},
	} {
		c := New(WithMode(tc.mode))
		var err error
		if tc.lock {
			_, err = c.Lock(tc.mn, tc.args...)
		} else {
			_, err = c.Inst(tc.mn, tc.args...)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
		if len(c.Expressions()) != 0 {
			t.Fatalf("%s: failed instruction was appended", tc.name)
		}
	}
}

func TestEncodeDirect(t *testing.T) {
	d, err := DefaultTable.Find("lea", Operands{Dst: RAX, Src: Mem{Base: RIP, Disp: Ref("data", 4)}})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := Encode(d, Operands{Dst: RAX, Src: Mem{Base: RIP, Disp: Ref("data", 4)}}, ModeLong, false)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprintf("%#x", enc.Bytes) != "0x488d0500000000" {
		t.Fatalf("encoded = %#x", enc.Bytes)
	}
	if len(enc.Relocs) != 1 || enc.Relocs[0] != (Reloc{Offset: 3, Width: 4, Label: "data"}) {
		t.Fatalf("relocs = %+v", enc.Relocs)
	}

	if _, err := Encode(d, Operands{Dst: RAX, Src: RBX}, ModeLong, false); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestText(t *testing.T) {
	for _, tc := range []struct {
		expect string
		lock   bool
		mn     string
		args   []Arg
	}{
		{"mov rax, qword ptr [rbx+0x8]", false, "mov", []Arg{RAX, Mem{Base: RBX, Disp: Disp(8)}}},
		{"mov dword ptr [rsp], 0x2a", false, "mov", []Arg{Mem{Base: RSP, Width: 4}, 42}},
		{"lea rax, [rbx+r15*2+0x8]", false, "lea", []Arg{RAX, Mem{Base: RBX, Index: R15, Scale: 2, Disp: Disp(8)}}},
		{"lock add qword ptr [rax], rbx", true, "add", []Arg{Mem{Base: RAX}, RBX}},
		{"shl rax, cl", false, "shl", []Arg{RAX, CL}},
		{"add rax, -0x1", false, "add", []Arg{RAX, -1}},
		{"je loop", false, "jz", []Arg{Ref("loop", 1)}},
	} {
		c := New()
		var (
			e   Expression
			err error
		)
		if tc.lock {
			e, err = c.Lock(tc.mn, tc.args...)
		} else if d, ok := tc.args[0].(Displacement); ok {
			e, err = c.Jump(tc.mn, d)
		} else {
			e, err = c.Inst(tc.mn, tc.args...)
		}
		if err != nil {
			t.Fatal(err)
		}
		if e.String() != tc.expect {
			t.Fatalf("String() = %s != %s", e, tc.expect)
		}
	}
}

func TestParseMode(t *testing.T) {
	for s, expect := range map[string]Mode{"real": ModeReal, "16": ModeReal, "compat": ModeCompat, "32": ModeCompat, "LONG": ModeLong, "64": ModeLong} {
		if m, ok := ParseMode(s); !ok || m != expect {
			t.Fatalf("ParseMode(%q) = %s, %v", s, m, ok)
		}
	}
	if _, ok := ParseMode("vm86"); ok {
		t.Fatal("unexpected mode vm86")
	}
	if ModeLong.String() != "long" || Mode(8).String() != "invalid" {
		t.Fatal("unexpected mode names")
	}
}
