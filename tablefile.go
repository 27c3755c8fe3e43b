package x64code

import (
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/wdamron/x64code/feats"
	flags "github.com/wdamron/x64code/internal/flags"
)

// tomlVariant is one variant of a mnemonic in a TOML table file:
//
//	[[imul]]
//	set = ["ENC_RM"]
//
//	[[imul]]
//	opcode = [0x0f, 0xaf]
//	size = 32
//	ops = [["reg32"], ["reg32|mem32"]]
//
// Each operand slot is a list of matchers; a matcher is a register name or a |-separated list
// of class names.
type tomlVariant struct {
	Mnemonic string     `toml:"mnemonic"`
	Opcode   []int      `toml:"opcode"`
	Digit    *int       `toml:"digit"`
	Size     int        `toml:"size"`
	Imm      int        `toml:"imm"`
	Prefix   int        `toml:"prefix"`
	Features []string   `toml:"features"`
	Set      []string   `toml:"set"`
	Clear    []string   `toml:"clear"`
	Ops      [][]string `toml:"ops"`
}

// Read a raw definition table from TOML. Mnemonics are keys holding arrays of variants.
func ParseTableTOML(r io.Reader) (RawTable, error) {
	var file map[string][]tomlVariant
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "Decoding definition table")
	}
	raw := make(RawTable, len(file))
	for name, variants := range file {
		configs := make([]Config, len(variants))
		for i, v := range variants {
			c, err := v.config()
			if err != nil {
				return nil, errors.Wrapf(err, "%s variant %d", name, i)
			}
			configs[i] = c
		}
		raw[strings.ToLower(name)] = configs
	}
	return raw, nil
}

func (v tomlVariant) config() (Config, error) {
	c := Config{Mnemonic: v.Mnemonic}
	for _, b := range v.Opcode {
		if b < 0 || b > 0xff {
			return c, errors.Errorf("Opcode byte %#x out of range", b)
		}
		c.Opcode = append(c.Opcode, byte(b))
	}
	if v.Digit != nil {
		if *v.Digit < 0 || *v.Digit > 7 {
			return c, errors.Errorf("Opcode extension /%d out of range", *v.Digit)
		}
		c.Ext = Digit(uint8(*v.Digit))
	}
	switch v.Size {
	case 0, 8, 16, 32, 64:
		c.Size = uint8(v.Size)
	default:
		return c, errors.Errorf("Invalid operand size %d", v.Size)
	}
	switch v.Imm {
	case 0, 1, 2, 4, 8:
		c.Imm = uint8(v.Imm)
	default:
		return c, errors.Errorf("Invalid immediate width %d", v.Imm)
	}
	if v.Prefix < 0 || v.Prefix > 0xff {
		return c, errors.Errorf("Prefix byte %#x out of range", v.Prefix)
	}
	c.Prefix = byte(v.Prefix)

	for _, name := range v.Features {
		f, ok := feats.ByName(name)
		if !ok {
			return c, errors.Errorf("Unknown feature %q", name)
		}
		c.Feats |= f
	}
	var err error
	if c.Set, err = parseFlags(v.Set); err != nil {
		return c, err
	}
	if c.Clear, err = parseFlags(v.Clear); err != nil {
		return c, err
	}

	if v.Ops != nil {
		c.Ops = make([]Slot, 0, len(v.Ops))
		for _, matchers := range v.Ops {
			slot, err := parseSlot(matchers)
			if err != nil {
				return c, err
			}
			c.Ops = append(c.Ops, slot)
		}
	}
	return c, nil
}

func parseFlags(names []string) (flags.Flag, error) {
	var f flags.Flag
	for _, name := range names {
		bit, ok := flags.ByName(name)
		if !ok {
			return 0, errors.Errorf("Unknown flag %q", name)
		}
		f |= bit
	}
	return f, nil
}

func parseSlot(matchers []string) (Slot, error) {
	if len(matchers) == 0 {
		return nil, errors.Errorf("Empty operand slot")
	}
	slot := make(Slot, 0, len(matchers))
	for _, m := range matchers {
		m = strings.ToLower(strings.TrimSpace(m))
		if r, ok := RegByName(m); ok {
			slot = append(slot, Exact(r))
			continue
		}
		var class Class
		for _, name := range strings.Split(m, "|") {
			c, ok := ClassByName(strings.TrimSpace(name))
			if !ok {
				return nil, errors.Errorf("Unknown operand matcher %q", m)
			}
			class |= c
		}
		slot = append(slot, OfClass(class))
	}
	return slot, nil
}
