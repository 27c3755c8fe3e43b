package disasm

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// Decode instructions from code until while returns false or the code is exhausted. mode is the
// processor mode in bits (16, 32 or 64).
//
// Some instructions encoded by the x64code package are not supported by the decoder in the
// x86asm package.
func Code(code []byte, mode int, while func(offset int, inst x86asm.Inst) bool) error {
	for n := 0; n < len(code); {
		inst, err := x86asm.Decode(code[n:], mode)
		if err != nil {
			return errors.Wrapf(err, "Decoding instruction at offset %#x", n)
		}
		if !while(n, inst) {
			return nil
		}
		n += inst.Len
	}
	return nil
}

// Render code as a listing: offset, instruction bytes and Intel syntax, one instruction per line.
func Listing(code []byte, mode int) (string, error) {
	var sb strings.Builder
	err := Code(code, mode, func(offset int, inst x86asm.Inst) bool {
		fmt.Fprintf(&sb, "%04x  %-30x  %s\n", offset, code[offset:offset+inst.Len], x86asm.IntelSyntax(inst, uint64(offset), nil))
		return true
	})
	return sb.String(), err
}

// Decode code and render every instruction in Intel syntax.
func Intel(code []byte, mode int) ([]string, error) {
	var lines []string
	err := Code(code, mode, func(offset int, inst x86asm.Inst) bool {
		lines = append(lines, x86asm.IntelSyntax(inst, uint64(offset), nil))
		return true
	})
	return lines, err
}

// Disassemble instructions from funcValue until while returns false. A maximum of 4096 bytes
// may be decoded. This function is entirely unsafe.
//
// funcValue must be a non-nil Go function-value.
func Func(funcValue interface{}, while func(x86asm.Inst) bool) error {
	// See "Go 1.1 Function Calls":
	// https://docs.google.com/document/d/1bMwCey-gmqZVTpRax-ESeVuZGmjwbocYs1iHplK-cjo/pub
	type interfaceHeader struct {
		typ  uintptr
		addr **[]byte
	}
	v := reflect.ValueOf(funcValue)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("Argument for Func must be a non-nil function-value")
	}
	header := *(*interfaceHeader)(unsafe.Pointer(&funcValue))
	code := (*[4096]byte)(unsafe.Pointer(*header.addr))
	return Code(code[:], 64, func(n int, inst x86asm.Inst) bool {
		if !while(inst) {
			return false
		}
		return !endOfFunc(code[:], n)
	})
}

// Check for RET followed by padding up to a 16-byte boundary.
func endOfFunc(code []byte, n int) bool {
	if code[n] != 0xc3 {
		return false
	}
	if (n+1)&15 == 0 {
		return true
	}
	pad := 16 - ((n + 1) & 15) // functions are typically aligned to a 16-byte boundary
	tail := code[n+1 : n+1+pad]
	return bytes.Equal(tail, pad00[:pad]) || bytes.Equal(tail, padcc[:pad])
}

// Manually allocated memory is typically zeroed
var pad00 = [16]byte{}

// The Go compiler pads functions with 0xCC bytes to a 16-byte alignment boundary
var padcc = [...]byte{0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc}
