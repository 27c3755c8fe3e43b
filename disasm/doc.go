// package disasm provides disassembly for compiled code and for Go functions at runtime.
//
// example usage:
//
//	package example
//
//	import (
//		"fmt"
//
//		"github.com/wdamron/x64code"
//		"github.com/wdamron/x64code/disasm"
//	)
//
//	func PrintListing() error {
//		code := x64code.New()
//		code.Inst("mov", x64code.RAX, x64code.Mem{Base: x64code.RDI, Disp: x64code.Disp(8)})
//		code.Inst("add", x64code.RAX, x64code.RSI)
//		code.ZeroOperands("ret")
//
//		b, err := code.Compile()
//		if err != nil {
//			return err
//		}
//		listing, err := disasm.Listing(b, 64)
//		if err != nil {
//			return err
//		}
//		fmt.Print(listing)
//		// Outputs:
//		//
//		// 	0000  488b4708                        mov rax, qword ptr [rdi+0x8]
//		// 	0004  4801f0                          add rax, rsi
//		// 	0007  c3                              ret
//
//		return nil
//	}
package disasm
