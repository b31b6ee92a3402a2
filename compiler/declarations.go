package compiler

import (
	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/op"
)

// functionSpec describes one body to compile into a FunctionProto.
type functionSpec struct {
	name          string
	params        []ast.Param
	body          *ast.Block
	isMethod      bool
	isInitializer bool
	isOverride    bool

	// members are the enclosing type's member names, for implicit self
	// access inside method bodies.
	members map[string]bool

	// implicitReturn compiles a trailing expression statement as the return
	// value, which is how single-expression closures behave.
	implicitReturn bool
}

// compileFunctionProto compiles a function body into a prototype and
// returns it. The caller emits the CLOSURE instruction.
func (c *Compiler) compileFunctionProto(spec functionSpec) (*bytecode.FunctionProto, error) {
	b := c.beginBody("self", spec.isMethod)
	b.isInit = spec.isInitializer
	b.members = spec.members

	proto := &bytecode.FunctionProto{
		Name:          spec.name,
		IsInitializer: spec.isInitializer,
		IsOverride:    spec.isOverride,
	}
	for _, param := range spec.params {
		proto.Params = append(proto.Params, param.Name)
		proto.Labels = append(proto.Labels, param.Label)
		if param.Default != nil {
			k, err := c.constantForDefault(param.Default)
			if err != nil {
				return nil, err
			}
			proto.Defaults = append(proto.Defaults, k)
			proto.HasDefault = append(proto.HasDefault, true)
		} else {
			proto.Defaults = append(proto.Defaults, bytecode.Constant{})
			proto.HasDefault = append(proto.HasDefault, false)
		}
		if _, err := c.declareLocal(spec.body.Token.Position, param.Name); err != nil {
			return nil, err
		}
	}

	stmts := spec.body.Statements
	last := len(stmts) - 1
	for i, stmt := range stmts {
		if spec.implicitReturn && i == last {
			if es, ok := stmt.(*ast.ExprStmt); ok {
				line := es.Pos().LineNumber()
				if err := c.compileExpression(es.Expr); err != nil {
					return nil, err
				}
				c.emit(line, op.CopyValue)
				c.emit(line, op.Return)
				continue
			}
		}
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	endLine := blockEndLine(spec.body)
	c.emit(endLine, op.Nil)
	c.emit(endLine, op.Return)

	proto.Upvalues = b.upvalues
	proto.Body = c.endBody()
	return proto, nil
}

// constantForDefault restricts parameter defaults to literal constants so
// they can live in the prototype's defaults vector.
func (c *Compiler) constantForDefault(expr ast.Expression) (bytecode.Constant, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return bytecode.IntConstant(e.Value), nil
	case *ast.FloatLit:
		return bytecode.FloatConstant(e.Value), nil
	case *ast.StringLit:
		return bytecode.StringConstant(e.Value), nil
	case *ast.BoolLit:
		return bytecode.BoolConstant(e.Value), nil
	case *ast.NilLit:
		return bytecode.NullConstant(), nil
	case *ast.Prefix:
		if e.Op == "-" {
			if i, ok := e.Right.(*ast.IntLit); ok {
				return bytecode.IntConstant(-i.Value), nil
			}
			if f, ok := e.Right.(*ast.FloatLit); ok {
				return bytecode.FloatConstant(-f.Value), nil
			}
		}
	}
	return bytecode.Constant{}, c.errorf(expr.Pos(), "parameter default must be a literal")
}

// emitClosureFor compiles a prototype and emits the CLOSURE instruction
// that instantiates it.
func (c *Compiler) emitClosureFor(line int, spec functionSpec) error {
	proto, err := c.compileFunctionProto(spec)
	if err != nil {
		return err
	}
	idx, err := c.functionIndexOf(proto)
	if err != nil {
		return c.errorf(spec.body.Token.Position, "%v", err)
	}
	c.emitWithU16(line, op.Closure, idx)
	return nil
}

func (c *Compiler) compileFuncDecl(s *ast.FuncDecl) error {
	line := s.Pos().LineNumber()
	if err := c.emitClosureFor(line, functionSpec{
		name:       s.Name,
		params:     s.Params,
		body:       s.Body,
		isOverride: s.IsOverride,
	}); err != nil {
		return err
	}
	b := c.current
	if b.scopeDepth == 0 && b.enclosing == nil {
		c.emitWithU16(line, op.DefineGlobal, c.stringIndexOf(s.Name))
		return nil
	}
	_, err := c.declareLocal(s.Pos(), s.Name)
	return err
}

func (c *Compiler) compileClosureLit(e *ast.ClosureLit) error {
	return c.emitClosureFor(e.Pos().LineNumber(), functionSpec{
		params:         e.Params,
		body:           e.Body,
		implicitReturn: true,
	})
}

func (c *Compiler) compileClassDecl(s *ast.ClassDecl) error {
	line := s.Pos().LineNumber()
	nameIdx := c.stringIndexOf(s.Name)
	members := map[string]bool{}
	for _, p := range s.Props {
		members[p.Name] = true
	}
	for _, comp := range s.Computed {
		members[comp.Name] = true
	}
	for _, m := range s.Methods {
		members[m.Name] = true
	}
	if s.IsStruct {
		c.emitWithU16(line, op.Struct, nameIdx)
	} else {
		c.emitWithU16(line, op.Class, nameIdx)
	}

	// Link superclass and protocol conformances. INHERIT distinguishes a
	// class from a protocol descriptor at runtime.
	if s.Superclass != "" {
		c.emitWithU16(line, op.GetGlobal, c.stringIndexOf(s.Superclass))
		c.emit(line, op.Inherit)
	}
	for _, protoName := range s.Protocols {
		c.emitWithU16(line, op.GetGlobal, c.stringIndexOf(protoName))
		c.emit(line, op.Inherit)
	}

	// Stored properties.
	for _, prop := range s.Props {
		propLine := prop.Pos().LineNumber()
		if prop.Default != nil {
			if err := c.compileExpression(prop.Default); err != nil {
				return err
			}
		} else {
			c.emit(propLine, op.Nil)
		}
		if prop.WillSet == nil && prop.DidSet == nil {
			c.emitWithU16(propLine, op.DefineProperty, c.stringIndexOf(prop.Name))
			continue
		}
		flags := byte(0)
		if prop.WillSet != nil {
			flags |= 1
			if err := c.emitClosureFor(propLine, functionSpec{
				name:     s.Name + "." + prop.Name + ".willSet",
				params:   []ast.Param{{Name: prop.WillSetName}},
				body:     prop.WillSet,
				isMethod: true,
				members:  members,
			}); err != nil {
				return err
			}
		}
		if prop.DidSet != nil {
			flags |= 2
			if err := c.emitClosureFor(propLine, functionSpec{
				name:     s.Name + "." + prop.Name + ".didSet",
				params:   []ast.Param{{Name: prop.DidSetName}},
				body:     prop.DidSet,
				isMethod: true,
				members:  members,
			}); err != nil {
				return err
			}
		}
		c.emitWithU16(propLine, op.DefinePropertyWithObservers, c.stringIndexOf(prop.Name))
		c.emitByte(propLine, flags)
	}

	// Computed properties.
	for _, comp := range s.Computed {
		if err := c.compileComputed(comp, s.Name, members); err != nil {
			return err
		}
	}

	// Methods and initializers.
	for _, m := range s.Methods {
		if err := c.compileMethod(m, s.IsStruct, members); err != nil {
			return err
		}
	}
	for _, init := range s.Inits {
		initLine := init.Pos().LineNumber()
		if err := c.emitClosureFor(initLine, functionSpec{
			name:          s.Name + ".init",
			params:        init.Params,
			body:          init.Body,
			isMethod:      true,
			isInitializer: true,
			members:       members,
		}); err != nil {
			return err
		}
		c.emitWithU16(initLine, op.Method, c.stringIndexOf("init"))
	}

	c.emitWithU16(line, op.DefineGlobal, nameIdx)
	return nil
}

func (c *Compiler) compileComputed(comp *ast.ComputedDecl, typeName string, members map[string]bool) error {
	line := comp.Pos().LineNumber()
	if err := c.emitClosureFor(line, functionSpec{
		name:     typeName + "." + comp.Name + ".get",
		body:     comp.Getter,
		isMethod: true,
		members:  members,
	}); err != nil {
		return err
	}
	hasSetter := byte(0)
	if comp.Setter != nil {
		hasSetter = 1
		if err := c.emitClosureFor(line, functionSpec{
			name:     typeName + "." + comp.Name + ".set",
			params:   []ast.Param{{Name: comp.SetterName}},
			body:     comp.Setter,
			isMethod: true,
			members:  members,
		}); err != nil {
			return err
		}
	}
	c.emitWithU16(line, op.DefineComputedProperty, c.stringIndexOf(comp.Name))
	c.emitByte(line, hasSetter)
	return nil
}

func (c *Compiler) compileMethod(m *ast.FuncDecl, isStruct bool, members map[string]bool) error {
	line := m.Pos().LineNumber()
	if err := c.emitClosureFor(line, functionSpec{
		name:       m.Name,
		params:     m.Params,
		body:       m.Body,
		isMethod:   true,
		isOverride: m.IsOverride,
		members:    members,
	}); err != nil {
		return err
	}
	if isStruct {
		c.emitWithU16(line, op.StructMethod, c.stringIndexOf(m.Name))
		mutating := byte(0)
		if m.IsMutating {
			mutating = 1
		}
		c.emitByte(line, mutating)
	} else {
		c.emitWithU16(line, op.Method, c.stringIndexOf(m.Name))
	}
	return nil
}

func (c *Compiler) compileEnumDecl(s *ast.EnumDecl) error {
	line := s.Pos().LineNumber()
	nameIdx := c.stringIndexOf(s.Name)
	c.emitWithU16(line, op.Enum, nameIdx)

	for _, caseDecl := range s.Cases {
		caseLine := caseDecl.Pos().LineNumber()
		hasRaw := byte(0)
		if caseDecl.Raw != nil {
			hasRaw = 1
			if err := c.compileExpression(caseDecl.Raw); err != nil {
				return err
			}
		}
		if len(caseDecl.Assoc) > 255 {
			return c.errorf(caseDecl.Pos(), "too many associated values")
		}
		c.emitWithU16(caseLine, op.EnumCase, c.stringIndexOf(caseDecl.Name))
		c.emitByte(caseLine, hasRaw)
		c.emitByte(caseLine, byte(len(caseDecl.Assoc)))
		for _, assoc := range caseDecl.Assoc {
			if assoc.Label == "" {
				c.emitU16(caseLine, noLabel)
			} else {
				c.emitU16(caseLine, c.stringIndexOf(assoc.Label))
			}
		}
	}

	enumMembers := map[string]bool{}
	for _, m := range s.Methods {
		enumMembers[m.Name] = true
	}
	for _, comp := range s.Computed {
		enumMembers[comp.Name] = true
	}
	for _, m := range s.Methods {
		if err := c.compileMethod(m, false, enumMembers); err != nil {
			return err
		}
	}
	for _, comp := range s.Computed {
		if err := c.compileComputed(comp, s.Name, enumMembers); err != nil {
			return err
		}
	}

	c.emitWithU16(line, op.DefineGlobal, nameIdx)
	return nil
}

func (c *Compiler) compileProtocolDecl(s *ast.ProtocolDecl) error {
	line := s.Pos().LineNumber()
	b := c.current
	idx := uint16(len(b.chunk.Protocols))
	b.chunk.Protocols = append(b.chunk.Protocols, &bytecode.Protocol{
		Name:       s.Name,
		Methods:    s.Methods,
		Properties: s.Properties,
	})
	c.emitWithU16(line, op.Protocol, idx)
	c.emitWithU16(line, op.DefineGlobal, c.stringIndexOf(s.Name))
	return nil
}
