package main

import (
	"fmt"
	"io"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/wdamron/x64code"
	"github.com/wdamron/x64code/disasm"
)

var dumpConfig struct {
	offset int64
	length int64
}

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "disassemble a range of a binary file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mode()
		if err != nil {
			return err
		}
		return dump(cmd.OutOrStdout(), m, args[0], dumpConfig.offset, dumpConfig.length)
	},
}

func init() {
	dumpCmd.Flags().Int64Var(&dumpConfig.offset, "offset", 0, "Offset of the first byte to disassemble")
	dumpCmd.Flags().Int64Var(&dumpConfig.length, "length", -1, "Number of bytes to disassemble, or -1 for the rest of the file")
}

func dump(w io.Writer, m x64code.Mode, path string, offset, length int64) error {
	code := x64code.New(x64code.WithMode(m))
	var err error
	if length < 0 {
		_, err = code.IncludeBinaryFrom(path, offset)
	} else {
		_, err = code.IncludeBinaryRange(path, offset, length)
	}
	if err != nil {
		return err
	}
	b, err := code.Compile()
	if err != nil {
		return err
	}
	listing, err := disasm.Listing(b, int(m))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s at offset %d (%s):\n%s", path, offset, units.BytesSize(float64(len(b))), listing)
	return nil
}
