// Command sunscript runs and inspects compiled SunScript programs.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunscript-lang/sunscript"
	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/dis"
	"github.com/sunscript-lang/sunscript/errz"
	"github.com/sunscript-lang/sunscript/vm"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sunscript",
	Short: "SunScript language runtime",
	Long:  "SunScript is a Swift-like scripting language with a bytecode virtual machine.",
}

var runCmd = &cobra.Command{
	Use:   "run <file.ssasm|file.sun>",
	Short: "Execute a compiled artifact or source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunk, err := loadOrCompile(args[0])
		if err != nil {
			return err
		}
		machine := vm.New()
		result, err := machine.Run(context.Background(), chunk)
		if err != nil {
			// The VM already reported the error to stderr.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			os.Exit(1)
		}
		fmt.Println(result.String())
		return nil
	},
}

var disCmd = &cobra.Command{
	Use:   "dis <file.ssasm|file.sun>",
	Short: "Disassemble a compiled artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunk, err := loadOrCompile(args[0])
		if err != nil {
			return err
		}
		return dis.Disassemble(os.Stdout, chunk, args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sunscript", version)
	},
}

// loadOrCompile accepts either a compiled .ssasm artifact or a .sun
// source file.
func loadOrCompile(path string) (*bytecode.Chunk, error) {
	if strings.HasSuffix(path, ".ssasm") {
		return bytecode.Load(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunk, err := sunscript.Compile(string(raw),
		sunscript.WithFilename(path),
		sunscript.WithDebugBuild(),
	)
	if err != nil {
		if e, ok := err.(*errz.Error); ok {
			color.Red(e.FriendlyErrorMessage())
			os.Exit(2)
		}
		return nil, err
	}
	return chunk, nil
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(disCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
