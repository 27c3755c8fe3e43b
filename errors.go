package x64code

import (
	"github.com/pkg/errors"
)

// Errors returned by the builder are wrapped with context; test them with errors.Is.
var (
	// An operand has the wrong kind for its position, or a value could not be converted to an operand.
	ErrOperandType = errors.New("Invalid operand type")
	// No definition of the mnemonic accepts the operands.
	ErrNoMatch = errors.New("No matching instruction definition found")
	// The mnemonic is not present in the definition table.
	ErrUnknownMnemonic = errors.New("Unknown mnemonic")
	// A label name is empty or already defined.
	ErrLabel = errors.New("Invalid label")
	// The operands matched a definition but cannot be encoded in the current mode.
	ErrEncoding = errors.New("Instruction cannot be encoded")
	// A label referenced by an instruction was never defined.
	ErrUndefinedLabel = errors.New("Undefined label")
	// A relative label offset does not fit the width of its displacement.
	ErrRange = errors.New("Relative label offset exceeds range")
	// A named text encoding is unknown, or the text cannot be represented in it.
	ErrTextEncoding = errors.New("Unsupported text encoding")
)
