// Package jit places compiled machine code in executable memory and binds Go function values to it.
package jit

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// Page is a mapping of executable memory holding one piece of compiled code.
type Page struct {
	mem  []byte // whole mapping
	size int    // length of the code
}

// Get the code held by the page, or nil once the page is closed.
func (p *Page) Bytes() []byte {
	if p.mem == nil {
		return nil
	}
	return p.mem[:p.size]
}

// Get the length of the code held by the page.
func (p *Page) Len() int { return p.size }

// Get the size of the mapping, a multiple of the system page size.
func (p *Page) Cap() int { return len(p.mem) }

// Bind the function value pointed to by dst to the start of the page. The function must match
// the calling convention of the code. The page must stay mapped while the function is in use.
func (p *Page) Func(dst interface{}) error {
	if p.mem == nil {
		return errors.New("Page is closed")
	}
	return SetFunctionCode(dst, p.mem)
}

// Set the executable code for dstAddr. This function is entirely unsafe.
//
// dstAddr must be a pointer to a function value.
// executable must be mapped with execute permission.
func SetFunctionCode(dstAddr interface{}, executable []byte) error {
	// See "Go 1.1 Function Calls":
	// https://docs.google.com/document/d/1bMwCey-gmqZVTpRax-ESeVuZGmjwbocYs1iHplK-cjo/pub
	type interfaceHeader struct {
		typ  uintptr
		addr **[]byte
	}
	v := reflect.ValueOf(dstAddr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || !v.Elem().CanSet() || v.Elem().Kind() != reflect.Func {
		return errors.New("Destination for SetFunctionCode must be a pointer to a function-value")
	}
	if len(executable) == 0 {
		return errors.New("No executable code for SetFunctionCode")
	}
	header := *(*interfaceHeader)(unsafe.Pointer(&dstAddr))
	*header.addr = &executable
	return nil
}
