package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wdamron/x64code"
	x64flags "github.com/wdamron/x64code/flags"
)

var showFlags bool

func init() {
	tableCmd.Flags().BoolVar(&showFlags, "flags", false, "Print the encoding flags of each definition")
}

var tableCmd = &cobra.Command{
	Use:   "table [MNEMONIC...]",
	Short: "list instruction definitions",
	Long:  `Lists the definitions of the given mnemonics in lookup order, or every mnemonic when none are given`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := table()
		if err != nil {
			return err
		}
		return printTable(cmd.OutOrStdout(), t, args, showFlags)
	},
}

func printTable(w io.Writer, t *x64code.DefTable, mnemonics []string, withFlags bool) error {
	if len(mnemonics) == 0 {
		mnemonics = t.Mnemonics()
	}
	for _, name := range mnemonics {
		g, ok := t.Group(strings.ToLower(name))
		if !ok {
			return errors.Errorf("Unknown mnemonic %q", name)
		}
		fmt.Fprintf(w, "%s:\n", g.Name)
		for _, d := range g.Defs {
			if names := x64flags.Names(d.Flags); withFlags && len(names) > 0 {
				fmt.Fprintf(w, "\t%s [%s]\n", d, strings.Join(names, " "))
				continue
			}
			fmt.Fprintf(w, "\t%s\n", d)
		}
	}
	return nil
}
