// Package sunscript is the embedding surface for the SunScript language:
// compile source text to bytecode and execute it on a fresh virtual
// machine.
//
// Basic usage:
//
//	result, err := sunscript.Eval(ctx, `print("hello")`)
//
// Compiled chunks are immutable and reusable; each Run call creates
// fresh runtime state.
package sunscript

import (
	"context"
	"io"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/object"
	"github.com/sunscript-lang/sunscript/parser"
	"github.com/sunscript-lang/sunscript/vm"
)

// Option configures a compilation or execution.
type Option func(*options)

type options struct {
	filename  string
	buildKind compiler.BuildKind
	output    io.Writer
	errOutput io.Writer
	input     io.Reader
	stackSize int
	debugger  *vm.Debugger
	natives   map[string]object.NativeFuncImpl
}

func collectOptions(opts ...Option) *options {
	o := &options{natives: map[string]object.NativeFuncImpl{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithFilename sets the source filename used in error messages and debug
// info.
func WithFilename(filename string) Option {
	return func(o *options) {
		o.filename = filename
	}
}

// WithDebugBuild embeds debug info (source path and local scope ranges)
// in the compiled artifact.
func WithDebugBuild() Option {
	return func(o *options) {
		o.buildKind = compiler.Debug
	}
}

// WithOutput directs print output. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithErrorOutput directs uncaught-error reports. The default is stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(o *options) {
		o.errOutput = w
	}
}

// WithInput supplies the readLine input stream. The default is stdin.
func WithInput(r io.Reader) Option {
	return func(o *options) {
		o.input = r
	}
}

// WithStackSize caps the operand stack.
func WithStackSize(n int) Option {
	return func(o *options) {
		o.stackSize = n
	}
}

// WithDebugger attaches a debug controller to the VM.
func WithDebugger(d *vm.Debugger) Option {
	return func(o *options) {
		o.debugger = d
	}
}

// WithNative registers a host function callable from script. This option
// is additive.
func WithNative(name string, fn object.NativeFuncImpl) Option {
	return func(o *options) {
		o.natives[name] = fn
	}
}

func (o *options) vmOpts() []vm.Option {
	var opts []vm.Option
	if o.output != nil {
		opts = append(opts, vm.WithOutput(o.output))
	}
	if o.errOutput != nil {
		opts = append(opts, vm.WithErrorOutput(o.errOutput))
	}
	if o.input != nil {
		opts = append(opts, vm.WithInput(o.input))
	}
	if o.stackSize > 0 {
		opts = append(opts, vm.WithStackSize(o.stackSize))
	}
	if o.debugger != nil {
		opts = append(opts, vm.WithDebugger(o.debugger))
	}
	for name, fn := range o.natives {
		opts = append(opts, vm.WithNative(name, fn))
	}
	return opts
}

// Compile parses and compiles source code into an executable chunk.
func Compile(source string, opts ...Option) (*bytecode.Chunk, error) {
	o := collectOptions(opts...)
	var parserOpts []parser.Option
	if o.filename != "" {
		parserOpts = append(parserOpts, parser.WithFile(o.filename))
	}
	prog, err := parser.Parse(source, parserOpts...)
	if err != nil {
		return nil, err
	}
	var compilerOpts []compiler.Option
	compilerOpts = append(compilerOpts, compiler.WithBuildKind(o.buildKind))
	if o.filename != "" {
		compilerOpts = append(compilerOpts, compiler.WithSourceFile(o.filename))
	}
	return compiler.Compile(prog, compilerOpts...)
}

// Run executes a compiled chunk on a fresh VM and returns the resulting
// value.
func Run(ctx context.Context, chunk *bytecode.Chunk, opts ...Option) (object.Value, error) {
	o := collectOptions(opts...)
	machine := vm.New(o.vmOpts()...)
	return machine.Run(ctx, chunk)
}

// Eval compiles and runs source code. It is equivalent to Compile
// followed by Run.
func Eval(ctx context.Context, source string, opts ...Option) (object.Value, error) {
	chunk, err := Compile(source, opts...)
	if err != nil {
		return object.Null, err
	}
	return Run(ctx, chunk, opts...)
}
