// Package x64flags exports the encoding flags which may be set or cleared on instruction
// definitions built outside the x64code package.
package x64flags

import (
	internal "github.com/wdamron/x64code/internal/flags"
)

type Flag = internal.Flag

// Flags
const (
	DEFAULT   = internal.DEFAULT
	LOCK      = internal.LOCK      // user lock prefix is valid with this instruction
	REG_IN_OP = internal.REG_IN_OP // a register argument is encoded in the last byte of the opcode
	DBIT      = internal.DBIT      // direction bit selects a memory source
	ENC_RM    = internal.ENC_RM    // select alternate arg encoding
	DEF64     = internal.DEF64     // no REX.W for 64-bit operands
	MOFFS     = internal.MOFFS     // absolute address without ModRM
)

func FlagName(f Flag) string { return internal.FlagName(f) }

func ByName(name string) (Flag, bool) { return internal.ByName(name) }

// Get the names of all flags set in f, in bit order.
func Names(f Flag) []string { return internal.Names(f) }
