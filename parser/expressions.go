package parser

import (
	"strconv"
	"strings"

	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/token"
)

// Operator precedence, lowest binds weakest.
const (
	precLowest = iota
	precAssign
	precCoalesce
	precOr
	precAnd
	precEquality
	precComparison
	precRange
	precBitOr
	precBitAnd
	precShift
	precSum
	precProduct
	precPrefix
	precPostfix
)

var precedences = map[token.Type]int{
	token.ASSIGN:          precAssign,
	token.PLUS_EQUALS:     precAssign,
	token.MINUS_EQUALS:    precAssign,
	token.ASTERISK_EQUALS: precAssign,
	token.SLASH_EQUALS:    precAssign,
	token.NULLISH:         precCoalesce,
	token.OR:              precOr,
	token.AND:             precAnd,
	token.EQ:              precEquality,
	token.NOT_EQ:          precEquality,
	token.LT:              precComparison,
	token.GT:              precComparison,
	token.LT_EQUALS:       precComparison,
	token.GT_EQUALS:       precComparison,
	token.IS:              precComparison,
	token.AS:              precComparison,
	token.RANGE_INCL:      precRange,
	token.RANGE_EXCL:      precRange,
	token.PIPE:            precBitOr,
	token.CARET:           precBitOr,
	token.AMPERSAND:       precBitAnd,
	token.SHL:             precShift,
	token.SHR:             precShift,
	token.PLUS:            precSum,
	token.MINUS:           precSum,
	token.ASTERISK:        precProduct,
	token.SLASH:           precProduct,
	token.PERCENT:         precProduct,
	token.LPAREN:          precPostfix,
	token.DOT:             precPostfix,
	token.QUESTION_DOT:    precPostfix,
	token.LBRACKET:        precPostfix,
	token.BANG:            precPostfix,
}

func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parsePrecedence(precLowest + 1)
}

func (p *Parser) parsePrecedence(minPrec int) (ast.Expression, error) {
	left, err := p.parsePrefixExpr()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := precedences[p.cur().Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		left, err = p.parseInfixExpr(left, prec)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePrefixExpr() (ast.Expression, error) {
	tok := p.cur()
	switch tok.Type {
	case token.INT:
		p.advance()
		value, err := parseIntLiteral(tok.Literal)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", tok.Literal)
		}
		return &ast.IntLit{Token: tok, Value: value}, nil
	case token.FLOAT:
		p.advance()
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %q", tok.Literal)
		}
		return &ast.FloatLit{Token: tok, Value: value}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{Token: tok, Value: tok.Literal}, nil
	case token.TRUE, token.FALSE:
		p.advance()
		return &ast.BoolLit{Token: tok, Value: tok.Type == token.TRUE}, nil
	case token.NIL:
		p.advance()
		return &ast.NilLit{Token: tok}, nil
	case token.IDENT:
		p.advance()
		return &ast.Ident{Token: tok, Name: tok.Literal}, nil
	case token.SELF:
		p.advance()
		return &ast.SelfExpr{Token: tok}, nil
	case token.SUPER:
		p.advance()
		if _, err := p.expect(token.DOT); err != nil {
			return nil, err
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.SuperExpr{Token: tok, Name: name.Literal}, nil
	case token.MINUS, token.BANG, token.TILDE:
		p.advance()
		right, err := p.parsePrecedence(precPrefix)
		if err != nil {
			return nil, err
		}
		return &ast.Prefix{Token: tok, Op: tok.Literal, Right: right}, nil
	case token.LPAREN:
		return p.parseParenExpr()
	case token.LBRACKET:
		return p.parseBracketLiteral()
	case token.LBRACE:
		return p.parseClosureLit()
	default:
		return nil, p.errorf("unexpected %s in expression", tokenDescription(tok))
	}
}

func parseIntLiteral(lit string) (int64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		return strconv.ParseInt(lit[2:], 16, 64)
	}
	if strings.HasPrefix(lit, "0b") || strings.HasPrefix(lit, "0B") {
		return strconv.ParseInt(lit[2:], 2, 64)
	}
	return strconv.ParseInt(lit, 10, 64)
}

func (p *Parser) parseInfixExpr(left ast.Expression, prec int) (ast.Expression, error) {
	tok := p.cur()
	switch tok.Type {
	case token.ASSIGN, token.PLUS_EQUALS, token.MINUS_EQUALS, token.ASTERISK_EQUALS, token.SLASH_EQUALS:
		p.advance()
		value, err := p.parsePrecedence(precAssign) // right-associative
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Token: tok, Op: tok.Literal, Target: left, Value: value}, nil
	case token.LPAREN:
		return p.parseCall(left)
	case token.DOT, token.QUESTION_DOT:
		p.advance()
		if p.at(token.INT) {
			idxTok := p.advance()
			idx, err := strconv.Atoi(idxTok.Literal)
			if err != nil {
				return nil, p.errorf("invalid tuple index %q", idxTok.Literal)
			}
			return &ast.TupleIndex{Token: tok, Target: left, Index: idx}, nil
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Member{
			Token:    tok,
			Target:   left,
			Name:     name.Literal,
			Optional: tok.Type == token.QUESTION_DOT,
		}, nil
	case token.LBRACKET:
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.Subscript{Token: tok, Target: left, Index: index}, nil
	case token.BANG:
		p.advance()
		return &ast.ForceUnwrap{Token: tok, Expr: left}, nil
	case token.IS:
		p.advance()
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		return &ast.TypeCheck{Token: tok, Expr: left, Type: typeName}, nil
	case token.AS:
		p.advance()
		mode := ast.CastPlain
		if p.accept(token.QUESTION) {
			mode = ast.CastOptional
		} else if p.accept(token.BANG) {
			mode = ast.CastForced
		}
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		return &ast.Cast{Token: tok, Expr: left, Type: typeName, Mode: mode}, nil
	default:
		// Left-associative binary operator.
		p.advance()
		right, err := p.parsePrecedence(prec + 1)
		if err != nil {
			return nil, err
		}
		return &ast.Infix{Token: tok, Op: tok.Literal, Left: left, Right: right}, nil
	}
}

func (p *Parser) parseCall(callee ast.Expression) (ast.Expression, error) {
	tok, err := p.expect(token.LPAREN)
	if err != nil {
		return nil, err
	}
	call := &ast.Call{Token: tok, Callee: callee}
	p.skipNewlines()
	for !p.at(token.RPAREN) {
		var arg ast.Arg
		if p.at(token.IDENT) && p.peekAt(1).Type == token.COLON {
			arg.Label = p.advance().Literal
			p.advance()
		}
		arg.Value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		p.skipNewlines()
		if !p.accept(token.COMMA) {
			break
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

// parseParenExpr parses grouping or a tuple literal.
func (p *Parser) parseParenExpr() (ast.Expression, error) {
	tok := p.advance() // (
	if p.at(token.RPAREN) {
		return nil, p.errorf("empty parentheses are not an expression")
	}
	var items []ast.Expression
	var labels []string
	for {
		label := ""
		if p.at(token.IDENT) && p.peekAt(1).Type == token.COLON {
			label = p.advance().Literal
			p.advance()
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
		labels = append(labels, label)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if len(items) == 1 && labels[0] == "" {
		return items[0], nil
	}
	return &ast.TupleLit{Token: tok, Items: items, Labels: labels}, nil
}

// parseBracketLiteral parses an array literal, a dictionary literal, or
// the empty dictionary [:].
func (p *Parser) parseBracketLiteral() (ast.Expression, error) {
	tok := p.advance() // [
	p.skipNewlines()
	if p.accept(token.COLON) {
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.DictLit{Token: tok}, nil
	}
	if p.accept(token.RBRACKET) {
		return &ast.ArrayLit{Token: tok}, nil
	}
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.accept(token.COLON) {
		dict := &ast.DictLit{Token: tok}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		dict.Keys = append(dict.Keys, first)
		dict.Values = append(dict.Values, value)
		for p.accept(token.COMMA) {
			p.skipNewlines()
			key, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, val)
			p.skipNewlines()
		}
		p.skipNewlines()
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return dict, nil
	}
	arr := &ast.ArrayLit{Token: tok, Items: []ast.Expression{first}}
	for p.accept(token.COMMA) {
		p.skipNewlines()
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
		p.skipNewlines()
	}
	p.skipNewlines()
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return arr, nil
}

// parseClosureLit parses a closure expression: { body }, { x in body },
// or { (a, b) in body }.
func (p *Parser) parseClosureLit() (ast.Expression, error) {
	tok := p.advance() // {
	closure := &ast.ClosureLit{Token: tok}

	if names, consumed := p.scanClosureParams(); consumed > 0 {
		for _, n := range names {
			closure.Params = append(closure.Params, ast.Param{Name: n})
		}
		p.pos += consumed
	}

	body := &ast.Block{Token: tok}
	p.skipNewlines()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body.Statements = append(body.Statements, stmt)
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	closure.Body = body
	return closure, nil
}

// scanClosureParams looks ahead for a closure parameter clause ending in
// `in`. It returns the parameter names and the number of tokens the clause
// occupies, or (nil, 0) when the brace opens a parameterless body.
func (p *Parser) scanClosureParams() ([]string, int) {
	i := p.pos
	at := func(j int) token.Token { return p.peekAt(j - p.pos) }
	var names []string

	if at(i).Type == token.LPAREN {
		i++
		for at(i).Type == token.IDENT {
			names = append(names, at(i).Literal)
			i++
			// Optional type annotation inside closure parameter lists is
			// limited to simple names.
			if at(i).Type == token.COLON && at(i+1).Type == token.IDENT {
				i += 2
			}
			if at(i).Type != token.COMMA {
				break
			}
			i++
		}
		if at(i).Type != token.RPAREN || at(i+1).Type != token.IN {
			return nil, 0
		}
		return names, i + 2 - p.pos
	}

	for at(i).Type == token.IDENT {
		names = append(names, at(i).Literal)
		i++
		if at(i).Type != token.COMMA {
			break
		}
		i++
	}
	if len(names) == 0 || at(i).Type != token.IN {
		return nil, 0
	}
	return names, i + 1 - p.pos
}
