package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"fortio.org/safecast"

	"github.com/sunscript-lang/sunscript/errz"
)

// Magic identifies a serialized SunScript bytecode artifact.
var Magic = [4]byte{'S', 'S', 'B', 'C'}

// Version is the current artifact format version.
const Version uint16 = 1

// Artifact layout, all little-endian:
//
//	magic[4] version:u16
//	constants strings functions protocols code lines debug?
//
// Each section is length-prefixed. Function prototypes nest their body
// chunk recursively. The trailing debug byte selects whether a debug-info
// block follows.

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) u8(v uint8) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) u16(v uint16) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) u32(v uint32) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) i64(v int64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) f64(v float64) {
	w.u64(math.Float64bits(v))
}

func (w *writer) u64(v uint64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *writer) str(s string) {
	n, err := safecast.Convert[uint32](len(s))
	if err != nil {
		w.err = err
		return
	}
	w.u32(n)
	w.bytes([]byte(s))
}

func (w *writer) count16(n int, what string) {
	v, err := safecast.Convert[uint16](n)
	if err != nil {
		w.err = fmt.Errorf("%s count %d exceeds uint16", what, n)
		return
	}
	w.u16(v)
}

// Write serializes the chunk to the given writer.
func Write(out io.Writer, c *Chunk) error {
	w := &writer{w: out}
	w.bytes(Magic[:])
	w.u16(Version)
	writeChunk(w, c)
	return w.err
}

func writeChunk(w *writer, c *Chunk) {
	// Constants
	w.count16(len(c.Constants), "constant")
	for _, k := range c.Constants {
		writeConstant(w, k)
	}
	// Strings
	w.count16(len(c.Strings), "string")
	for _, s := range c.Strings {
		w.str(s)
	}
	// Function prototypes
	w.count16(len(c.Functions), "function")
	for _, fn := range c.Functions {
		writeFunction(w, fn)
	}
	// Protocols
	w.count16(len(c.Protocols), "protocol")
	for _, p := range c.Protocols {
		w.str(p.Name)
		w.count16(len(p.Methods), "protocol method")
		for _, m := range p.Methods {
			w.str(m)
		}
		w.count16(len(p.Properties), "protocol property")
		for _, m := range p.Properties {
			w.str(m)
		}
	}
	// Code
	codeLen, err := safecast.Convert[uint32](len(c.Code))
	if err != nil {
		w.err = err
		return
	}
	w.u32(codeLen)
	w.bytes(c.Code)
	// Line table
	w.u32(uint32(len(c.Lines)))
	for _, line := range c.Lines {
		w.u32(uint32(line))
	}
	// Debug info
	if c.Debug == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.str(c.Debug.SourceFile)
	w.count16(len(c.Debug.Locals), "debug local")
	for _, l := range c.Debug.Locals {
		w.str(l.Name)
		w.u16(l.Slot)
		w.u32(l.ScopeStart)
		w.u32(l.ScopeEnd)
	}
}

func writeConstant(w *writer, k Constant) {
	w.u8(uint8(k.Kind))
	switch k.Kind {
	case ConstNull:
	case ConstBool:
		if k.Bool {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case ConstInt:
		w.i64(k.Int)
	case ConstFloat:
		w.f64(k.Float)
	case ConstString:
		w.str(k.Str)
	}
}

func writeFunction(w *writer, fn *FunctionProto) {
	w.str(fn.Name)
	w.count16(len(fn.Params), "parameter")
	for i, p := range fn.Params {
		w.str(p)
		w.str(fn.Labels[i])
	}
	// Defaults vector with presence flags
	for i := range fn.Params {
		if i < len(fn.HasDefault) && fn.HasDefault[i] {
			w.u8(1)
			writeConstant(w, fn.Defaults[i])
		} else {
			w.u8(0)
		}
	}
	writeChunk(w, fn.Body)
	w.count16(len(fn.Upvalues), "upvalue")
	for _, uv := range fn.Upvalues {
		w.u16(uv.Index)
		if uv.IsLocal {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
	flags := uint8(0)
	if fn.IsInitializer {
		flags |= 1
	}
	if fn.IsOverride {
		flags |= 2
	}
	w.u8(flags)
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) u8() uint8 {
	var v uint8
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, &v)
	}
	return v
}

func (r *reader) u16() uint16 {
	var v uint16
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, &v)
	}
	return v
}

func (r *reader) u32() uint32 {
	var v uint32
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, &v)
	}
	return v
}

func (r *reader) i64() int64 {
	var v int64
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, &v)
	}
	return v
}

func (r *reader) f64() float64 {
	var v uint64
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, &v)
	}
	return math.Float64frombits(v)
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, r.err = io.ReadFull(r.r, b)
	return b
}

func (r *reader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	return string(r.bytes(int(n)))
}

// Read deserializes a chunk from the given reader.
func Read(in io.Reader) (*Chunk, error) {
	r := &reader{r: in}
	magic := r.bytes(4)
	if r.err != nil {
		return nil, r.err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, fmt.Errorf("not a SunScript bytecode artifact")
	}
	version := r.u16()
	if r.err != nil {
		return nil, r.err
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported bytecode version %d (want %d)", version, Version)
	}
	c := readChunk(r)
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func readChunk(r *reader) *Chunk {
	c := &Chunk{}
	nConst := int(r.u16())
	for i := 0; i < nConst && r.err == nil; i++ {
		c.Constants = append(c.Constants, readConstant(r))
	}
	nStr := int(r.u16())
	for i := 0; i < nStr && r.err == nil; i++ {
		c.Strings = append(c.Strings, r.str())
	}
	nFn := int(r.u16())
	for i := 0; i < nFn && r.err == nil; i++ {
		c.Functions = append(c.Functions, readFunction(r))
	}
	nProto := int(r.u16())
	for i := 0; i < nProto && r.err == nil; i++ {
		p := &Protocol{Name: r.str()}
		nm := int(r.u16())
		for j := 0; j < nm && r.err == nil; j++ {
			p.Methods = append(p.Methods, r.str())
		}
		np := int(r.u16())
		for j := 0; j < np && r.err == nil; j++ {
			p.Properties = append(p.Properties, r.str())
		}
		c.Protocols = append(c.Protocols, p)
	}
	codeLen := int(r.u32())
	if r.err == nil {
		c.Code = r.bytes(codeLen)
	}
	lineCount := int(r.u32())
	for i := 0; i < lineCount && r.err == nil; i++ {
		c.Lines = append(c.Lines, int32(r.u32()))
	}
	if r.u8() == 1 && r.err == nil {
		dbg := &DebugInfo{SourceFile: r.str()}
		nLocals := int(r.u16())
		for i := 0; i < nLocals && r.err == nil; i++ {
			dbg.Locals = append(dbg.Locals, LocalVar{
				Name:       r.str(),
				Slot:       r.u16(),
				ScopeStart: r.u32(),
				ScopeEnd:   r.u32(),
			})
		}
		c.Debug = dbg
	}
	return c
}

func readConstant(r *reader) Constant {
	kind := ConstantKind(r.u8())
	switch kind {
	case ConstNull:
		return NullConstant()
	case ConstBool:
		return BoolConstant(r.u8() == 1)
	case ConstInt:
		return IntConstant(r.i64())
	case ConstFloat:
		return FloatConstant(r.f64())
	case ConstString:
		return StringConstant(r.str())
	default:
		if r.err == nil {
			r.err = fmt.Errorf("invalid constant kind %d", kind)
		}
		return Constant{}
	}
}

func readFunction(r *reader) *FunctionProto {
	fn := &FunctionProto{Name: r.str()}
	nParams := int(r.u16())
	for i := 0; i < nParams && r.err == nil; i++ {
		fn.Params = append(fn.Params, r.str())
		fn.Labels = append(fn.Labels, r.str())
	}
	for i := 0; i < nParams && r.err == nil; i++ {
		if r.u8() == 1 {
			fn.Defaults = append(fn.Defaults, readConstant(r))
			fn.HasDefault = append(fn.HasDefault, true)
		} else {
			fn.Defaults = append(fn.Defaults, Constant{})
			fn.HasDefault = append(fn.HasDefault, false)
		}
	}
	fn.Body = readChunk(r)
	nUp := int(r.u16())
	for i := 0; i < nUp && r.err == nil; i++ {
		idx := r.u16()
		isLocal := r.u8() == 1
		fn.Upvalues = append(fn.Upvalues, UpvalueDesc{Index: idx, IsLocal: isLocal})
	}
	flags := r.u8()
	fn.IsInitializer = flags&1 != 0
	fn.IsOverride = flags&2 != 0
	return fn
}

// Save writes the chunk to a file.
func Save(path string, c *Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return errz.Newf(errz.ErrIo, errz.SourceLocation{}, nil, "create %s: %v", path, err).WithCause(err)
	}
	defer f.Close()
	if err := Write(f, c); err != nil {
		return errz.Newf(errz.ErrIo, errz.SourceLocation{}, nil, "write %s: %v", path, err).WithCause(err)
	}
	return nil
}

// Load reads a chunk from a file.
func Load(path string) (*Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errz.Newf(errz.ErrIo, errz.SourceLocation{}, nil, "open %s: %v", path, err).WithCause(err)
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, errz.Newf(errz.ErrIo, errz.SourceLocation{}, nil, "read %s: %v", path, err).WithCause(err)
	}
	return c, nil
}
