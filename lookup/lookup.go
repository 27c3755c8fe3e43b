// Package x64lookup finds instruction definitions in the default table by mnemonic, ignoring case.
package x64lookup

import (
	"github.com/wdamron/x64code"
)

const maxMnemonicLength = 16

// Lookup the definition group for a mnemonic. The mnemonic will be converted to lowercase if necessary.
func Group(mnemonic string) (*x64code.DefGroup, bool) {
	if len(mnemonic) == 0 || len(mnemonic) >= maxMnemonicLength {
		return nil, false
	}
	return x64code.DefaultTable.Group(lowerCase(mnemonic))
}

// Lookup the first definition of a mnemonic accepting the operands.
func Find(mnemonic string, ops x64code.Operands) (*x64code.Definition, bool) {
	g, ok := Group(mnemonic)
	if !ok {
		return nil, false
	}
	return g.Find(ops)
}

// Get the sorted mnemonics of the default table.
func Mnemonics() []string { return x64code.DefaultTable.Mnemonics() }

func lowerCase(s string) string {
	var b [maxMnemonicLength]byte
	changed := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			ch |= 0x20
			changed = true
		}
		b[i] = ch
	}
	if !changed {
		return s
	}
	return string(b[:len(s)])
}
