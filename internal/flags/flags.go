package x64flags

import "strings"

// Flag is a bit set of encoding flags attached to an instruction definition.
type Flag uint32

// Flags
const (
	DEFAULT   Flag = 0         // this instruction has default encoding
	LOCK      Flag = 1 << iota // user lock prefix is valid with this instruction
	REG_IN_OP                  // a register argument is encoded in the low 3 bits of the last opcode byte
	DBIT                       // the opcode direction bit is set when the source operand is memory
	ENC_RM                     // the destination goes in ModRM.reg and the source in ModRM.rm
	DEF64                      // 64-bit operand size is the default in long mode (no REX.W)
	MOFFS                      // the memory operand is an absolute address of mode width, encoded without ModRM
)

func FlagName(f Flag) string { return flagNames[f] }

// Look up a single flag by name, ignoring case.
func ByName(name string) (Flag, bool) {
	for f, n := range flagNames {
		if strings.EqualFold(n, name) {
			return f, true
		}
	}
	return 0, false
}

// Get the names of all flags set in f, in bit order.
func Names(f Flag) []string {
	var names []string
	for bit := LOCK; bit <= MOFFS; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, flagNames[bit])
		}
	}
	return names
}

var flagNames = map[Flag]string{
	DEFAULT:   "DEFAULT",
	LOCK:      "LOCK",
	REG_IN_OP: "REG_IN_OP",
	DBIT:      "DBIT",
	ENC_RM:    "ENC_RM",
	DEF64:     "DEF64",
	MOFFS:     "MOFFS",
}
