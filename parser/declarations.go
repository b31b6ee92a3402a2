package parser

import (
	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/token"
)

func (p *Parser) parseFuncDecl(isInit, isOverride, isMutating bool) (*ast.FuncDecl, error) {
	if !isInit {
		if _, err := p.expect(token.FUNC); err != nil {
			return nil, err
		}
	}
	return p.parseFuncDeclAfterKeyword(isInit, isOverride, isMutating)
}

func (p *Parser) parseFuncDeclAfterKeyword(isInit, isOverride, isMutating bool) (*ast.FuncDecl, error) {
	decl := &ast.FuncDecl{
		Token:         p.cur(),
		IsInitializer: isInit,
		IsOverride:    isOverride,
		IsMutating:    isMutating,
	}
	if isInit {
		decl.Name = "init"
	} else {
		name, err := p.funcName()
		if err != nil {
			return nil, err
		}
		decl.Name = name
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	decl.Params = params
	if p.accept(token.ARROW) {
		decl.ReturnType, err = p.parseTypeName()
		if err != nil {
			return nil, err
		}
	}
	decl.Body, err = p.parseBlock()
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// funcName accepts an identifier or an overloadable operator symbol as a
// function name.
func (p *Parser) funcName() (string, error) {
	switch p.cur().Type {
	case token.IDENT,
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
		token.EQ, token.NOT_EQ, token.LT, token.GT, token.LT_EQUALS, token.GT_EQUALS:
		return p.advance().Literal, nil
	default:
		return "", p.errorf("expected function name, found %s", tokenDescription(p.cur()))
	}
}

// parseParamList parses a parenthesized parameter list. Each parameter is
// `label name: Type = default`, `name: Type`, or `_ name: Type`; a lone
// name serves as both label and name.
func (p *Parser) parseParamList() ([]ast.Param, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RPAREN) {
		var param ast.Param
		switch {
		case p.at(token.UNDERSCORE):
			p.advance()
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			param.Name = name.Literal
		case p.at(token.IDENT) && p.peekAt(1).Type == token.IDENT:
			param.Label = p.advance().Literal
			param.Name = p.advance().Literal
		case p.at(token.IDENT):
			name := p.advance().Literal
			param.Label = name
			param.Name = name
		default:
			return nil, p.errorf("expected parameter name, found %s", tokenDescription(p.cur()))
		}
		if p.accept(token.COLON) {
			t, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			param.Type = t
		}
		if p.accept(token.ASSIGN) {
			def, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseClassDecl(isStruct bool) (ast.Statement, error) {
	tok := p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.ClassDecl{Token: tok, Name: name.Literal, IsStruct: isStruct}
	if p.accept(token.COLON) {
		// The first name is the superclass for classes; every name is a
		// protocol for structs. Whether the first class name is a superclass
		// or a protocol is resolved at run time by the INHERIT instruction.
		for {
			n, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if decl.Superclass == "" && !isStruct {
				decl.Superclass = n.Literal
			} else {
				decl.Protocols = append(decl.Protocols, n.Literal)
			}
			if !p.accept(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if err := p.parseTypeMember(decl); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseTypeMember(decl *ast.ClassDecl) error {
	switch p.cur().Type {
	case token.LET, token.VAR, token.WEAK, token.UNOWNED:
		prop, computed, err := p.parsePropertyMember()
		if err != nil {
			return err
		}
		if computed != nil {
			decl.Computed = append(decl.Computed, computed)
		} else {
			decl.Props = append(decl.Props, prop)
		}
	case token.FUNC:
		fn, err := p.parseFuncDecl(false, false, false)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
	case token.OVERRIDE:
		p.advance()
		if _, err := p.expect(token.FUNC); err != nil {
			return err
		}
		fn, err := p.parseFuncDeclAfterKeyword(false, true, false)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
	case token.MUTATING:
		p.advance()
		if _, err := p.expect(token.FUNC); err != nil {
			return err
		}
		fn, err := p.parseFuncDeclAfterKeyword(false, false, true)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
	case token.INIT:
		p.advance()
		fn, err := p.parseFuncDeclAfterInit()
		if err != nil {
			return err
		}
		decl.Inits = append(decl.Inits, fn)
	default:
		return p.errorf("unexpected %s in type body", tokenDescription(p.cur()))
	}
	return p.endOfStatement()
}

func (p *Parser) parseFuncDeclAfterInit() (*ast.FuncDecl, error) {
	decl := &ast.FuncDecl{Token: p.cur(), Name: "init", IsInitializer: true}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	decl.Params = params
	decl.Body, err = p.parseBlock()
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// parsePropertyMember parses a stored property (optionally with observers)
// or a computed property. Exactly one of the results is non-nil.
func (p *Parser) parsePropertyMember() (*ast.PropDecl, *ast.ComputedDecl, error) {
	var weak, unowned bool
	if p.accept(token.WEAK) {
		weak = true
	} else if p.accept(token.UNOWNED) {
		unowned = true
	}
	tok := p.cur()
	if !p.accept(token.LET) && !p.accept(token.VAR) {
		return nil, nil, p.errorf("expected let or var")
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, nil, err
	}
	typeName := ""
	if p.accept(token.COLON) {
		typeName, err = p.parseTypeName()
		if err != nil {
			return nil, nil, err
		}
	}

	// `var x: T { ... }` with no initializer is a computed property or an
	// accessor block; `var x = e { ... }` is a stored property with
	// observers.
	var defaultValue ast.Expression
	if p.accept(token.ASSIGN) {
		defaultValue, err = p.parseExpression()
		if err != nil {
			return nil, nil, err
		}
	}
	if !p.at(token.LBRACE) {
		return &ast.PropDecl{
			Token:   tok,
			Name:    name.Literal,
			Type:    typeName,
			Default: defaultValue,
			Weak:    weak,
			Unowned: unowned,
		}, nil, nil
	}

	p.advance() // {
	p.skipNewlines()

	if defaultValue == nil && (p.at(token.GET) || p.at(token.SET)) {
		computed := &ast.ComputedDecl{Token: tok, Name: name.Literal, Type: typeName}
		for p.at(token.GET) || p.at(token.SET) {
			accessor := p.advance()
			switch accessor.Type {
			case token.GET:
				computed.Getter, err = p.parseBlock()
			case token.SET:
				computed.SetterName = "newValue"
				if p.accept(token.LPAREN) {
					n, err := p.expect(token.IDENT)
					if err != nil {
						return nil, nil, err
					}
					computed.SetterName = n.Literal
					if _, err := p.expect(token.RPAREN); err != nil {
						return nil, nil, err
					}
				}
				computed.Setter, err = p.parseBlock()
			}
			if err != nil {
				return nil, nil, err
			}
			p.skipNewlines()
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return nil, nil, err
		}
		if computed.Getter == nil {
			return nil, nil, p.errorf("computed property %s requires a getter", name.Literal)
		}
		return nil, computed, nil
	}

	// Stored property with observers.
	prop := &ast.PropDecl{
		Token:   tok,
		Name:    name.Literal,
		Type:    typeName,
		Default: defaultValue,
		Weak:    weak,
		Unowned: unowned,
	}
	for p.at(token.WILLSET) || p.at(token.DIDSET) {
		observer := p.advance()
		paramName := ""
		if p.accept(token.LPAREN) {
			n, err := p.expect(token.IDENT)
			if err != nil {
				return nil, nil, err
			}
			paramName = n.Literal
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, nil, err
			}
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, nil, err
		}
		switch observer.Type {
		case token.WILLSET:
			if paramName == "" {
				paramName = "newValue"
			}
			prop.WillSet = body
			prop.WillSetName = paramName
		case token.DIDSET:
			if paramName == "" {
				paramName = "oldValue"
			}
			prop.DidSet = body
			prop.DidSetName = paramName
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, nil, err
	}
	return prop, nil, nil
}

func (p *Parser) parseEnumDecl() (ast.Statement, error) {
	tok := p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.EnumDecl{Token: tok, Name: name.Literal}
	if p.accept(token.COLON) {
		decl.RawType, err = p.parseTypeName()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		switch p.cur().Type {
		case token.CASE:
			p.advance()
			for {
				caseDecl, err := p.parseEnumCase()
				if err != nil {
					return nil, err
				}
				decl.Cases = append(decl.Cases, caseDecl)
				if !p.accept(token.COMMA) {
					break
				}
			}
		case token.FUNC:
			fn, err := p.parseFuncDecl(false, false, false)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, fn)
		case token.VAR, token.LET:
			_, computed, err := p.parsePropertyMember()
			if err != nil {
				return nil, err
			}
			if computed == nil {
				return nil, p.errorf("enums may not declare stored properties")
			}
			decl.Computed = append(decl.Computed, computed)
		default:
			return nil, p.errorf("unexpected %s in enum body", tokenDescription(p.cur()))
		}
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseEnumCase() (*ast.EnumCaseDecl, error) {
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.EnumCaseDecl{Token: name, Name: name.Literal}
	if p.accept(token.ASSIGN) {
		decl.Raw, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		return decl, nil
	}
	if p.accept(token.LPAREN) {
		for !p.at(token.RPAREN) {
			var param ast.Param
			if p.at(token.IDENT) && p.peekAt(1).Type == token.COLON {
				param.Label = p.advance().Literal
				p.advance()
				param.Type, err = p.parseTypeName()
				if err != nil {
					return nil, err
				}
			} else {
				param.Type, err = p.parseTypeName()
				if err != nil {
					return nil, err
				}
			}
			decl.Assoc = append(decl.Assoc, param)
			if !p.accept(token.COMMA) {
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

func (p *Parser) parseProtocolDecl() (ast.Statement, error) {
	tok := p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.ProtocolDecl{Token: tok, Name: name.Literal}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		switch p.cur().Type {
		case token.FUNC:
			p.advance()
			n, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, n.Literal)
			if p.at(token.LPAREN) {
				if _, err := p.parseParamList(); err != nil {
					return nil, err
				}
			}
			if p.accept(token.ARROW) {
				if _, err := p.parseTypeName(); err != nil {
					return nil, err
				}
			}
		case token.VAR, token.LET:
			p.advance()
			n, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			decl.Properties = append(decl.Properties, n.Literal)
			if p.accept(token.COLON) {
				if _, err := p.parseTypeName(); err != nil {
					return nil, err
				}
			}
			// Optional accessor requirement list: { get } or { get set }.
			if p.accept(token.LBRACE) {
				for p.accept(token.GET) || p.accept(token.SET) {
				}
				if _, err := p.expect(token.RBRACE); err != nil {
					return nil, err
				}
			}
		default:
			return nil, p.errorf("unexpected %s in protocol body", tokenDescription(p.cur()))
		}
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}
