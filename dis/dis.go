// Package dis disassembles compiled SunScript bytecode chunks.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/op"
)

// Disassemble writes a listing of the chunk and every nested function
// body to the writer. Each instruction prints as OFFSET LINE OPCODE
// OPERAND.
func Disassemble(w io.Writer, c *bytecode.Chunk, name string) error {
	if name == "" {
		name = "<main>"
	}
	fmt.Fprintf(w, "== %s ==\n", name)
	offset := 0
	prevLine := -1
	for offset < len(c.Code) {
		next, err := disassembleInstruction(w, c, offset, prevLine)
		if err != nil {
			return err
		}
		prevLine = c.LineForOffset(offset)
		offset = next
	}
	for _, fn := range c.Functions {
		fmt.Fprintln(w)
		fnName := fn.Name
		if fnName == "" {
			fnName = "<closure>"
		}
		if err := Disassemble(w, fn.Body, fnName); err != nil {
			return err
		}
	}
	return nil
}

func disassembleInstruction(w io.Writer, c *bytecode.Chunk, offset, prevLine int) (int, error) {
	line := c.LineForOffset(offset)
	lineCol := fmt.Sprintf("%4d", line)
	if line == prevLine {
		lineCol = "   |"
	}

	code := op.Code(c.Code[offset])
	info := op.GetInfo(code)
	if info.Name == "" {
		fmt.Fprintf(w, "%04d  %s  <invalid %d>\n", offset, lineCol, code)
		return offset + 1, nil
	}

	pos := offset + 1
	var operands []int
	for _, width := range info.Operands {
		switch width {
		case op.Width8:
			operands = append(operands, int(c.Code[pos]))
			pos++
		case op.Width16:
			operands = append(operands, int(uint16(c.Code[pos])|uint16(c.Code[pos+1])<<8))
			pos += 2
		}
	}

	detail := formatOperands(c, code, operands)

	// Variable-length tails follow the fixed operands.
	switch code {
	case op.CallNamed:
		argc := operands[0]
		var labels []string
		for i := 0; i < argc; i++ {
			idx := uint16(c.Code[pos]) | uint16(c.Code[pos+1])<<8
			pos += 2
			labels = append(labels, labelName(c, idx))
		}
		detail += " [" + strings.Join(labels, ", ") + "]"
	case op.Tuple:
		count := operands[0]
		var labels []string
		for i := 0; i < count; i++ {
			idx := uint16(c.Code[pos]) | uint16(c.Code[pos+1])<<8
			pos += 2
			labels = append(labels, labelName(c, idx))
		}
		detail += " [" + strings.Join(labels, ", ") + "]"
	case op.EnumCase:
		assocCount := operands[2]
		var labels []string
		for i := 0; i < assocCount; i++ {
			idx := uint16(c.Code[pos]) | uint16(c.Code[pos+1])<<8
			pos += 2
			labels = append(labels, labelName(c, idx))
		}
		if len(labels) > 0 {
			detail += " [" + strings.Join(labels, ", ") + "]"
		}
	}

	if detail == "" {
		fmt.Fprintf(w, "%04d  %s  %s\n", offset, lineCol, info.Name)
	} else {
		fmt.Fprintf(w, "%04d  %s  %-26s %s\n", offset, lineCol, info.Name, detail)
	}
	return pos, nil
}

func labelName(c *bytecode.Chunk, idx uint16) string {
	if idx == 0xFFFF {
		return "_"
	}
	if int(idx) < len(c.Strings) {
		return c.Strings[idx]
	}
	return fmt.Sprintf("<%d>", idx)
}

func formatOperands(c *bytecode.Chunk, code op.Code, operands []int) string {
	if len(operands) == 0 {
		return ""
	}
	switch code {
	case op.Constant:
		if operands[0] < len(c.Constants) {
			return fmt.Sprintf("%d (%s)", operands[0], c.Constants[operands[0]])
		}
	case op.String, op.GetGlobal, op.SetGlobal, op.DefineGlobal,
		op.Class, op.Struct, op.Enum, op.Method, op.GetProperty,
		op.SetProperty, op.Super, op.OptionalChain, op.MatchEnumCase,
		op.GetTupleLabel, op.TypeCheck, op.TypeCast, op.TypeCastOptional,
		op.TypeCastForced, op.DefineProperty:
		if operands[0] < len(c.Strings) {
			return fmt.Sprintf("%d (%q)", operands[0], c.Strings[operands[0]])
		}
	case op.Function, op.Closure:
		if operands[0] < len(c.Functions) {
			name := c.Functions[operands[0]].Name
			if name == "" {
				name = "<closure>"
			}
			return fmt.Sprintf("%d (%s)", operands[0], name)
		}
	case op.StructMethod, op.DefineComputedProperty, op.DefinePropertyWithObservers, op.EnumCase:
		if operands[0] < len(c.Strings) {
			parts := []string{fmt.Sprintf("%d (%q)", operands[0], c.Strings[operands[0]])}
			for _, extra := range operands[1:] {
				parts = append(parts, fmt.Sprintf("%d", extra))
			}
			return strings.Join(parts, " ")
		}
	}
	parts := make([]string, len(operands))
	for i, o := range operands {
		parts[i] = fmt.Sprintf("%d", o)
	}
	return strings.Join(parts, " ")
}
