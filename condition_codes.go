package x64code

// ConditionCode is the 4-bit condition field of the jcc, setcc and cmovcc opcodes.
type ConditionCode byte

const (
	CCOverflow    ConditionCode = 0
	CCNoOverflow  ConditionCode = 1
	CCUnsignedLT  ConditionCode = 2
	CCUnsignedGTE ConditionCode = 3
	CCEq          ConditionCode = 4
	CCNeq         ConditionCode = 5
	CCUnsignedLTE ConditionCode = 6
	CCUnsignedGT  ConditionCode = 7
	CCSign        ConditionCode = 8
	CCNoSign      ConditionCode = 9
	CCParity      ConditionCode = 0xA
	CCNoParity    ConditionCode = 0xB
	CCSignedLT    ConditionCode = 0xC
	CCSignedGTE   ConditionCode = 0xD
	CCSignedLTE   ConditionCode = 0xE
	CCSignedGT    ConditionCode = 0xF
)

// Mnemonic suffixes for each condition code; the first suffix is canonical.
var ccSuffixes = [16][]string{
	{"o"},
	{"no"},
	{"b", "c", "nae"},
	{"ae", "nb", "nc"},
	{"e", "z"},
	{"ne", "nz"},
	{"be", "na"},
	{"a", "nbe"},
	{"s"},
	{"ns"},
	{"p", "pe"},
	{"np", "po"},
	{"l", "nge"},
	{"ge", "nl"},
	{"le", "ng"},
	{"g", "nle"},
}

// Get the conditional-jump mnemonic for a condition code.
func (cc ConditionCode) Jump() string { return "j" + ccSuffixes[cc&0xf][0] }

// Get the conditional-set mnemonic for a condition code.
func (cc ConditionCode) Set() string { return "set" + ccSuffixes[cc&0xf][0] }

// Get the conditional-move mnemonic for a condition code.
func (cc ConditionCode) Move() string { return "cmov" + ccSuffixes[cc&0xf][0] }

func (cc ConditionCode) String() string { return ccSuffixes[cc&0xf][0] }

// Invert a condition code.
func Invcc(cc ConditionCode) ConditionCode { return cc ^ 1 }
