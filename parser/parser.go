// Package parser turns SunScript source text into an abstract syntax tree.
package parser

import (
	"fmt"

	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/errz"
	"github.com/sunscript-lang/sunscript/internal/lexer"
	"github.com/sunscript-lang/sunscript/token"
)

// Parser consumes a token stream and produces a Program.
type Parser struct {
	tokens []token.Token
	pos    int
	file   string
}

// Option configures the parser.
type Option func(*Parser)

// WithFile sets the filename recorded in positions and errors.
func WithFile(file string) Option {
	return func(p *Parser) {
		p.file = file
	}
}

// Parse lexes and parses the given source text.
func Parse(source string, opts ...Option) (*ast.Program, error) {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	toks, err := lexer.NewWithFile(source, p.file).Tokenize()
	if err != nil {
		return nil, errz.CompileErrorf(errz.SourceLocation{File: p.file}, "%v", err)
	}
	p.tokens = toks
	return p.parseProgram()
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token.Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(t token.Type) bool {
	return p.cur().Type == t
}

func (p *Parser) accept(t token.Type) bool {
	if p.at(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if !p.at(t) {
		return token.Token{}, p.errorf("expected %s, found %q", t, p.cur().Literal)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	pos := p.cur().Position
	return errz.CompileErrorf(errz.SourceLocation{
		File:   pos.File,
		Line:   pos.LineNumber(),
		Column: pos.ColumnNumber(),
	}, format, args...)
}

func (p *Parser) skipNewlines() {
	for p.at(token.NEWLINE) || p.at(token.SEMICOLON) {
		p.advance()
	}
}

// endOfStatement consumes a statement terminator: newline, semicolon, EOF,
// or a closing brace left for the caller.
func (p *Parser) endOfStatement() error {
	switch p.cur().Type {
	case token.NEWLINE, token.SEMICOLON:
		p.skipNewlines()
		return nil
	case token.EOF, token.RBRACE:
		return nil
	default:
		return p.errorf("unexpected %q after statement", p.cur().Literal)
	}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{File: p.file}
	p.skipNewlines()
	for !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Type {
	case token.LET, token.VAR, token.WEAK, token.UNOWNED:
		return p.parseVarDecl()
	case token.FUNC:
		return p.parseFuncDecl(false, false, false)
	case token.OVERRIDE:
		p.advance()
		if _, err := p.expect(token.FUNC); err != nil {
			return nil, err
		}
		return p.parseFuncDeclAfterKeyword(false, true, false)
	case token.MUTATING:
		p.advance()
		if _, err := p.expect(token.FUNC); err != nil {
			return nil, err
		}
		return p.parseFuncDeclAfterKeyword(false, false, true)
	case token.CLASS:
		return p.parseClassDecl(false)
	case token.STRUCT:
		return p.parseClassDecl(true)
	case token.ENUM:
		return p.parseEnumDecl()
	case token.PROTOCOL:
		return p.parseProtocolDecl()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseForIn()
	case token.SWITCH:
		return p.parseSwitch()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		return &ast.Break{Token: p.advance()}, nil
	case token.CONTINUE:
		return &ast.Continue{Token: p.advance()}, nil
	case token.THROW:
		tok := p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.Throw{Token: tok, Value: value}, nil
	case token.DO:
		return p.parseDoCatch()
	default:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: expr}, nil
	}
}

func (p *Parser) parseVarDecl() (ast.Statement, error) {
	var weak, unowned bool
	if p.accept(token.WEAK) {
		weak = true
	} else if p.accept(token.UNOWNED) {
		unowned = true
	}
	tok := p.cur()
	mutable := tok.Type == token.VAR
	if !p.accept(token.LET) && !p.accept(token.VAR) {
		return nil, p.errorf("expected let or var")
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{
		Token:   tok,
		Name:    name.Literal,
		Mutable: mutable,
		Weak:    weak,
		Unowned: unowned,
	}
	if p.accept(token.COLON) {
		decl.Type, err = p.parseTypeName()
		if err != nil {
			return nil, err
		}
	}
	if p.accept(token.ASSIGN) {
		decl.Value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return decl, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	tok, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	block := &ast.Block{Token: tok}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	tok := p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.If{Token: tok, Cond: cond, Then: then}
	p.skipOnlyNewlinesBefore(token.ELSE)
	if p.accept(token.ELSE) {
		if p.at(token.IF) {
			stmt.Else, err = p.parseIf()
		} else {
			stmt.Else, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// skipOnlyNewlinesBefore skips newline tokens only when the next
// significant token is of the given type, so else may begin a new line
// without terminating the if.
func (p *Parser) skipOnlyNewlinesBefore(t token.Type) {
	i := p.pos
	for i < len(p.tokens) && (p.tokens[i].Type == token.NEWLINE || p.tokens[i].Type == token.SEMICOLON) {
		i++
	}
	if i < len(p.tokens) && p.tokens[i].Type == t {
		p.pos = i
	}
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	tok := p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Token: tok, Cond: cond, Body: body}, nil
}

func (p *Parser) parseForIn() (ast.Statement, error) {
	tok := p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForIn{Token: tok, Var: name.Literal, Iterable: iterable, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	tok := p.advance()
	stmt := &ast.Return{Token: tok}
	if p.at(token.NEWLINE) || p.at(token.SEMICOLON) || p.at(token.RBRACE) || p.at(token.EOF) {
		return stmt, nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	stmt.Value = value
	return stmt, nil
}

func (p *Parser) parseDoCatch() (ast.Statement, error) {
	tok := p.advance()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	p.skipOnlyNewlinesBefore(token.CATCH)
	if _, err := p.expect(token.CATCH); err != nil {
		return nil, err
	}
	catchVar := "error"
	if p.at(token.IDENT) {
		catchVar = p.advance().Literal
	}
	catchBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.DoCatch{Token: tok, Body: body, CatchVar: catchVar, CatchBody: catchBody}, nil
}

func (p *Parser) parseSwitch() (ast.Statement, error) {
	tok := p.advance()
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	stmt := &ast.Switch{Token: tok, Subject: subject}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		switch {
		case p.at(token.CASE):
			caseTok := p.advance()
			clause := &ast.SwitchCase{Token: caseTok}
			for {
				pattern, err := p.parseCasePattern()
				if err != nil {
					return nil, err
				}
				clause.Patterns = append(clause.Patterns, pattern)
				if !p.accept(token.COMMA) {
					break
				}
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			clause.Body, err = p.parseCaseBody(caseTok)
			if err != nil {
				return nil, err
			}
			stmt.Cases = append(stmt.Cases, clause)
		case p.at(token.DEFAULT):
			defTok := p.advance()
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			stmt.Default, err = p.parseCaseBody(defTok)
			if err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected case or default in switch, found %q", p.cur().Literal)
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseCaseBody reads statements until the next case, default, or closing
// brace.
func (p *Parser) parseCaseBody(tok token.Token) (*ast.Block, error) {
	block := &ast.Block{Token: tok}
	p.skipNewlines()
	for !p.at(token.CASE) && !p.at(token.DEFAULT) && !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		// The next case clause may begin on the same line.
		if p.at(token.CASE) || p.at(token.DEFAULT) {
			break
		}
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	return block, nil
}

// parseCasePattern parses either an enum pattern with bindings, like
// Resp.ok(let m) or .ok(let m), or a plain expression pattern.
func (p *Parser) parseCasePattern() (ast.Expression, error) {
	if pattern, ok, err := p.tryParseEnumPattern(); err != nil {
		return nil, err
	} else if ok {
		return pattern, nil
	}
	return p.parseExpression()
}

func (p *Parser) tryParseEnumPattern() (*ast.EnumPattern, bool, error) {
	start := p.pos
	pattern := &ast.EnumPattern{Token: p.cur()}
	switch {
	case p.at(token.IDENT) && p.peekAt(1).Type == token.DOT:
		pattern.EnumName = p.advance().Literal
		p.advance()
	case p.at(token.DOT):
		p.advance()
	default:
		return nil, false, nil
	}
	if !p.at(token.IDENT) {
		p.pos = start
		return nil, false, nil
	}
	pattern.CaseName = p.advance().Literal
	if !p.at(token.LPAREN) {
		// A bare case reference: only treat as an enum pattern when there is
		// no binding list; value patterns like Resp.ok are matched by
		// MATCH_ENUM_CASE anyway.
		return pattern, true, nil
	}
	// Bindings are present only for (let x, let y) lists; otherwise rewind
	// and parse as an ordinary expression pattern.
	if p.peekAt(1).Type != token.LET && p.peekAt(1).Type != token.VAR {
		p.pos = start
		return nil, false, nil
	}
	p.advance() // (
	for {
		if !p.accept(token.LET) && !p.accept(token.VAR) {
			return nil, false, p.errorf("expected let binding in case pattern")
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, false, err
		}
		pattern.Bindings = append(pattern.Bindings, name.Literal)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, false, err
	}
	return pattern, true, nil
}

// parseTypeName consumes a type annotation and returns its textual form.
func (p *Parser) parseTypeName() (string, error) {
	switch {
	case p.at(token.IDENT):
		name := p.advance().Literal
		for p.at(token.QUESTION) {
			p.advance()
			name += "?"
		}
		return name, nil
	case p.at(token.LBRACKET):
		p.advance()
		elem, err := p.parseTypeName()
		if err != nil {
			return "", err
		}
		if p.accept(token.COLON) {
			val, err := p.parseTypeName()
			if err != nil {
				return "", err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return "", err
			}
			return "[" + elem + ": " + val + "]", nil
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return "", err
		}
		return "[" + elem + "]", nil
	case p.at(token.LPAREN):
		p.advance()
		parts := ""
		for !p.at(token.RPAREN) {
			t, err := p.parseTypeName()
			if err != nil {
				return "", err
			}
			if parts != "" {
				parts += ", "
			}
			parts += t
			if !p.accept(token.COMMA) {
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return "", err
		}
		name := "(" + parts + ")"
		if p.accept(token.ARROW) {
			ret, err := p.parseTypeName()
			if err != nil {
				return "", err
			}
			name += " -> " + ret
		}
		return name, nil
	default:
		return "", p.errorf("expected type name, found %q", p.cur().Literal)
	}
}

func tokenDescription(t token.Token) string {
	if t.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Literal)
}
