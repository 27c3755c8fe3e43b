// package x64code provides a just-in-time x86-64 assembler in Go
//
// Instructions are matched against a definition table and encoded as they are added to a
// Code. Labels may be referenced before they are defined; references are patched when the
// code is compiled.
//
// usage example:
//
//	package example
//
//	import (
//		// Importing everything from the package into the current scope
//		// makes for less noise:
//		. "github.com/wdamron/x64code"
//		"github.com/wdamron/x64code/jit"
//	)
//
//	// Compile a function which returns the sum of 1..n.
//	func Triangle() (func(int) int, *jit.Page, error) {
//		code := New()
//		code.Inst("xor", ECX, ECX)
//		top, _ := code.Label("top")
//		code.Inst("add", RCX, RAX)
//		code.Inst("dec", RAX)
//		code.Jcc(CCNeq, top.Rel8())
//		code.Inst("mov", RAX, RCX)
//		code.ZeroOperands("ret")
//
//		b, err := code.Compile()
//		if err != nil {
//			return nil, nil, err
//		}
//		page, err := jit.Load(b)
//		if err != nil {
//			return nil, nil, err
//		}
//		var triangle func(int) int
//		if err := page.Func(&triangle); err != nil {
//			page.Close()
//			return nil, nil, err
//		}
//		// The page must stay mapped while triangle is in use.
//		return triangle, page, nil
//	}
package x64code
