// dynadump compiles a demonstration IR block with the x86-64 backend and
// prints the IR next to the generated machine code. It exists to inspect
// emitter output without attaching a debugger to a translator run.
package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/dynarec/ir"
	"github.com/colorfulnotion/dynarec/log"
	"github.com/colorfulnotion/dynarec/x64"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "dynadump",
		Short: "Inspect x86-64 emitter output",
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		noLZCNT  bool
		noSSE41  bool
		logLevel string
	)

	var demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Compile a demonstration block and disassemble it",
		Run: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)

			block := demoBlock()
			fmt.Print(block.String())

			emitter := x64.NewEmitX64(x64.Config{
				DisableLZCNT: noLZCNT,
				DisableSSE41: noSSE41,
			})
			code, err := emitter.CompileBlock(block)
			if err != nil {
				fmt.Fprintf(os.Stderr, "compile failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println()
			fmt.Print(x64.Disassemble(code))
		},
	}
	demoCmd.Flags().BoolVar(&noLZCNT, "no-lzcnt", false, "Force the BSR fallback path")
	demoCmd.Flags().BoolVar(&noSSE41, "no-sse41", false, "Force the punpcklqdq fallback path")
	demoCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.AddCommand(demoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// demoBlock builds a flag-setting add followed by a conditional select, the
// sequence that exercises the NZCV codec end to end.
func demoBlock() *ir.Block {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	r1 := b.Append(ir.GetRegister, ir.Imm8(1))
	a := b.Append(ir.LeastSignificantWord, r0)
	bb := b.Append(ir.LeastSignificantWord, r1)
	sum := b.Append(ir.Add32, a, bb, ir.Imm1(false))
	nzcv := b.Append(ir.GetNZCVFromOp, sum)
	b.Append(ir.SetCpsrNZCV, nzcv)
	sel := b.Append(ir.ConditionalSelect32, ir.ImmCond(ir.CondGT), sum, ir.Imm32(0xBB))
	wide := b.Append(ir.ZeroExtendWordToLong, sel)
	b.Append(ir.SetRegister, ir.Imm8(2), wide)
	clz := b.Append(ir.CountLeadingZeros64, r0)
	b.Append(ir.SetRegister, ir.Imm8(3), clz)
	return b
}
