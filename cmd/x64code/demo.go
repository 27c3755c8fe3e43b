package main

import (
	"fmt"
	"io"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wdamron/x64code"
	"github.com/wdamron/x64code/disasm"
	"github.com/wdamron/x64code/jit"
)

var demoConfig struct {
	value int32
	run   bool
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "assemble a function returning a constant",
	Long:  `Assembles "mov eax, VALUE; ret", prints its listing and optionally runs it from executable memory`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mode()
		if err != nil {
			return err
		}
		t, err := table()
		if err != nil {
			return err
		}
		code, b, err := assembleDemo(m, t, demoConfig.value)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if err := printDemo(w, m, code, b); err != nil {
			return err
		}
		if !demoConfig.run {
			return nil
		}
		if m != x64code.ModeLong {
			return fmt.Errorf("Running requires long mode, not %s", m)
		}
		result, err := runDemo(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "result: %d\n", result)
		return nil
	},
}

func init() {
	demoCmd.Flags().Int32Var(&demoConfig.value, "value", 25, "Constant returned by the function")
	demoCmd.Flags().BoolVar(&demoConfig.run, "run", false, "Run the function and print its result")
}

func assembleDemo(m x64code.Mode, t *x64code.DefTable, value int32) (*x64code.Code, []byte, error) {
	code := x64code.New(x64code.WithMode(m), x64code.WithTable(t), x64code.WithLogger(logrus.StandardLogger()))
	if _, err := code.Inst("mov", x64code.EAX, x64code.Imm(int64(value))); err != nil {
		return nil, nil, err
	}
	if _, err := code.ZeroOperands("ret"); err != nil {
		return nil, nil, err
	}
	b, err := code.Compile()
	if err != nil {
		return nil, nil, err
	}
	return code, b, nil
}

func printDemo(w io.Writer, m x64code.Mode, code *x64code.Code, b []byte) error {
	listing, err := disasm.Listing(b, int(m))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "source:\n%s\n\n", code)
	fmt.Fprintf(w, "machine code (%s):\n%s", units.HumanSize(float64(len(b))), listing)
	return nil
}

func runDemo(b []byte) (int32, error) {
	page, err := jit.Load(b)
	if err != nil {
		return 0, err
	}
	defer page.Close()
	var f func() int32
	if err := page.Func(&f); err != nil {
		return 0, err
	}
	logrus.WithField("mapped", units.BytesSize(float64(page.Cap()))).Debug("Running demo")
	return f(), nil
}
