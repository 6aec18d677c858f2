// Package parser turns a token stream into an MCDOC AST. It recovers at
// declaration boundaries so one bad declaration does not abort the whole
// file.
package parser

import (
	"fmt"

	"mcdoc/ast"
	"mcdoc/lexer"
)

// Error is one syntax diagnostic.
type Error struct {
	Expected string
	Found    string
	Pos      ast.Pos
}

func (e *Error) Error() string {
	return fmt.Sprintf("expected %s, found %s at %s", e.Expected, e.Found, e.Pos)
}

// Parser is a recursive-descent parser over a pre-lexed token slice.
type Parser struct {
	toks []ast.Token
	pos  int
	errs []*Error
}

// Parse lexes and parses source, returning either the file or the
// accumulated syntax errors. A lexical error aborts parsing entirely,
// matching §7's "Lexer errors abort a single schema file's parsing".
func Parse(source string) (*ast.McDocFile, []*Error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, []*Error{{Expected: "valid token", Found: err.Error(), Pos: ast.Pos{Line: 1, Column: 1}}}
	}
	p := &Parser{toks: toks}
	file := p.parseFile()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return file, nil
}

func (p *Parser) cur() ast.Token {
	return p.toks[p.pos]
}

func (p *Parser) at(k ast.TokenKind) bool {
	return p.cur().Kind == k
}

func (p *Parser) advance() ast.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// skipTrivia consumes insignificant Newline tokens; MCDOC is line-break
// insensitive outside of comments and string literals.
func (p *Parser) skipTrivia() {
	for p.at(ast.TokenNewline) {
		p.advance()
	}
}

func (p *Parser) expect(k ast.TokenKind) (ast.Token, bool) {
	p.skipTrivia()
	if p.cur().Kind != k {
		p.errorf(k.String(), p.cur())
		return ast.Token{}, false
	}
	return p.advance(), true
}

func (p *Parser) errorf(expected string, found ast.Token) {
	p.errs = append(p.errs, &Error{Expected: expected, Found: found.String(), Pos: found.Pos})
}

// recoverMember skips tokens until ',' or '}' so one bad member does not
// abort the enclosing struct/enum.
func (p *Parser) recoverMember() {
	depth := 0
	for {
		switch p.cur().Kind {
		case ast.TokenEOF:
			return
		case ast.TokenLBrace:
			depth++
			p.advance()
		case ast.TokenRBrace:
			if depth == 0 {
				return
			}
			depth--
			p.advance()
		case ast.TokenComma:
			if depth == 0 {
				p.advance()
				return
			}
			p.advance()
		default:
			p.advance()
		}
	}
}

// recoverDecl skips to the next declaration-introducing keyword.
func (p *Parser) recoverDecl() {
	for {
		switch p.cur().Kind {
		case ast.TokenEOF, ast.TokenStruct, ast.TokenEnum, ast.TokenType, ast.TokenDispatch, ast.TokenUse:
			return
		default:
			p.advance()
		}
	}
}

func (p *Parser) parseFile() *ast.McDocFile {
	file := &ast.McDocFile{}
	p.skipTrivia()
	for !p.at(ast.TokenEOF) {
		before := p.pos
		switch {
		case p.at(ast.TokenUse):
			file.Imports = append(file.Imports, p.parseImport())
		case p.at(ast.TokenAnnotation), p.at(ast.TokenStruct), p.at(ast.TokenEnum), p.at(ast.TokenType), p.at(ast.TokenDispatch):
			if d := p.parseDecl(); d != nil {
				file.Decls = append(file.Decls, d)
			}
		default:
			p.errorf("use|struct|enum|type|dispatch", p.cur())
			p.recoverDecl()
		}
		p.skipTrivia()
		if p.pos == before {
			p.advance() // guarantee forward progress
		}
	}
	return file
}

func (p *Parser) parseImport() ast.Import {
	pos := p.cur().Pos
	p.advance() // 'use'
	path := p.parseImportPath()
	p.skipTrivia()
	if p.at(ast.TokenSemicolon) {
		p.advance()
	}
	return ast.Import{Path: path, Pos: pos}
}

func (p *Parser) parseImportPath() ast.ImportPath {
	ip := ast.ImportPath{Absolute: true}
	p.skipTrivia()
	if p.at(ast.TokenSuper) {
		ip.Absolute = false
		p.advance()
		p.expect(ast.TokenDoubleColon)
	} else if p.at(ast.TokenDoubleColon) {
		p.advance()
	}
	for {
		p.skipTrivia()
		if p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind) {
			ip.Segments = append(ip.Segments, p.advance().Text)
		} else {
			p.errorf("identifier", p.cur())
			break
		}
		p.skipTrivia()
		if p.at(ast.TokenDoubleColon) {
			p.advance()
			continue
		}
		break
	}
	return ip
}

// isKeywordAsIdent reports whether a keyword token may double as a plain
// identifier, per the grammar's "keywords are accepted as field names" rule.
func isKeywordAsIdent(k ast.TokenKind) bool {
	switch k {
	case ast.TokenUse, ast.TokenStruct, ast.TokenEnum, ast.TokenType, ast.TokenDispatch, ast.TokenTo, ast.TokenSuper:
		return true
	}
	return false
}

func (p *Parser) identText() (string, bool) {
	p.skipTrivia()
	if p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind) {
		return p.advance().Text, true
	}
	p.errorf("identifier", p.cur())
	return "", false
}

func (p *Parser) parseDecl() ast.Decl {
	anns := p.parseAnnotations()
	p.skipTrivia()
	switch {
	case p.at(ast.TokenStruct):
		return p.parseStructDecl(anns)
	case p.at(ast.TokenEnum):
		return p.parseEnumDecl(anns)
	case p.at(ast.TokenType):
		return p.parseTypeDecl(anns)
	case p.at(ast.TokenDispatch):
		return p.parseDispatchDecl(anns)
	default:
		p.errorf("struct|enum|type|dispatch", p.cur())
		p.recoverDecl()
		return nil
	}
}

func (p *Parser) parseAnnotations() []ast.Annotation {
	var anns []ast.Annotation
	for {
		p.skipTrivia()
		if !p.at(ast.TokenAnnotation) {
			return anns
		}
		tok := p.advance()
		anns = append(anns, parseAnnotationText(tok))
	}
}

func (p *Parser) parseStructDecl(anns []ast.Annotation) *ast.StructDecl {
	pos := p.cur().Pos
	p.advance() // 'struct'
	name, _ := p.identText()
	members := p.parseMemberBlock()
	return &ast.StructDecl{Name: name, Members: members, Annotations: anns, Pos: pos}
}

// parseAnonStruct parses `struct Ident? { Member* }` for use inside a
// TypeExpr (named result discarded by callers that only need the shape).
func (p *Parser) parseAnonStruct() *ast.StructType {
	pos := p.cur().Pos
	p.advance() // 'struct'
	p.skipTrivia()
	if p.at(ast.TokenIdent) {
		p.advance() // optional name, not retained on the anonymous type node
	}
	members := p.parseMemberBlock()
	return &ast.StructType{Members: members, Pos: pos}
}

func (p *Parser) parseMemberBlock() []ast.Member {
	if _, ok := p.expect(ast.TokenLBrace); !ok {
		return nil
	}
	var members []ast.Member
	p.skipTrivia()
	for !p.at(ast.TokenRBrace) && !p.at(ast.TokenEOF) {
		before := p.pos
		if m := p.parseMember(); m != nil {
			members = append(members, m)
		}
		p.skipTrivia()
		if p.at(ast.TokenComma) {
			p.advance()
			p.skipTrivia()
		}
		if p.pos == before {
			p.recoverMember()
		}
	}
	p.expect(ast.TokenRBrace)
	return members
}

func (p *Parser) parseMember() ast.Member {
	anns := p.parseAnnotations()
	p.skipTrivia()
	switch {
	case p.at(ast.TokenDotDotDot):
		return p.parseSpreadMember(anns)
	case p.at(ast.TokenLBracket):
		return p.parseDynamicFieldMember(anns)
	case p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind):
		return p.parseFieldMember(anns)
	default:
		p.errorf("field, dynamic field, or spread", p.cur())
		p.recoverMember()
		return nil
	}
}

func (p *Parser) parseFieldMember(anns []ast.Annotation) *ast.FieldMember {
	pos := p.cur().Pos
	name, _ := p.identText()
	optional := false
	p.skipTrivia()
	if p.at(ast.TokenQuestion) {
		optional = true
		p.advance()
	}
	p.expect(ast.TokenColon)
	anns = append(anns, p.parseAnnotations()...)
	ty := p.parseTypeExpr()
	return &ast.FieldMember{Name: name, Type: ty, Optional: optional, Annotations: anns, Pos: pos}
}

func (p *Parser) parseDynamicFieldMember(anns []ast.Annotation) *ast.DynamicFieldMember {
	pos := p.cur().Pos
	p.advance() // '['
	keyAnns := p.parseAnnotations()
	keyTy := p.parseTypeExpr()
	p.expect(ast.TokenRBracket)
	optional := false
	p.skipTrivia()
	if p.at(ast.TokenQuestion) {
		optional = true
		p.advance()
	}
	p.expect(ast.TokenColon)
	valTy := p.parseTypeExpr()
	return &ast.DynamicFieldMember{KeyType: keyTy, KeyAnnotations: keyAnns, ValueType: valTy, Optional: optional, Annotations: anns, Pos: pos}
}

func (p *Parser) parseSpreadMember(anns []ast.Annotation) *ast.SpreadMember {
	pos := p.cur().Pos
	p.advance() // '...'
	p.skipTrivia()
	if p.at(ast.TokenStruct) {
		s := p.parseAnonStruct()
		decl := &ast.StructDecl{Members: s.Members, Pos: s.Pos}
		return &ast.SpreadMember{InlineStruct: decl, Annotations: anns, Pos: pos}
	}
	ip := p.parseImportPath()
	ns, reg := spreadNamespaceRegistry(ip)
	p.skipTrivia()
	if p.at(ast.TokenColon) {
		p.advance()
		ns = reg
		reg, _ = p.identText()
	}
	var dyn *ast.DynRef
	p.skipTrivia()
	if p.at(ast.TokenLBracket) {
		p.advance()
		p.expect(ast.TokenLBracket)
		d := p.parseDynRef()
		dyn = &d
		p.expect(ast.TokenRBracket)
		p.expect(ast.TokenRBracket)
	}
	return &ast.SpreadMember{Namespace: ns, Registry: reg, DynamicKey: dyn, Annotations: anns, Pos: pos}
}

// spreadNamespaceRegistry interprets a spread's Path as `ns:registry`: the
// grammar reuses the generic path production, but a spread target is always
// a two-segment `namespace:registry` resource reference.
func spreadNamespaceRegistry(ip ast.ImportPath) (string, string) {
	if len(ip.Segments) == 0 {
		return "", ""
	}
	if len(ip.Segments) == 1 {
		return "", ip.Segments[0]
	}
	return ip.Segments[0], ip.Segments[len(ip.Segments)-1]
}

func (p *Parser) parseDynRef() ast.DynRef {
	p.skipTrivia()
	if p.at(ast.TokenPercent) {
		p.advance()
		name, _ := p.identText()
		return ast.DynRef{Name: name, IsSpecial: true}
	}
	name, _ := p.identText()
	return ast.DynRef{Name: name}
}

func (p *Parser) parseEnumDecl(anns []ast.Annotation) *ast.EnumDecl {
	pos := p.cur().Pos
	p.advance() // 'enum'
	p.skipTrivia()
	baseTy := ""
	if p.at(ast.TokenLParen) {
		p.advance()
		baseTy, _ = p.identText()
		p.expect(ast.TokenRParen)
	}
	name, _ := p.identText()
	p.skipTrivia()
	if p.at(ast.TokenColon) {
		p.advance()
		baseTy, _ = p.identText()
	}
	variants := p.parseEnumVariants()
	return &ast.EnumDecl{Name: name, BaseType: baseTy, Variants: variants, Annotations: anns, Pos: pos}
}

func (p *Parser) parseEnumVariants() []ast.EnumVariant {
	if _, ok := p.expect(ast.TokenLBrace); !ok {
		return nil
	}
	var variants []ast.EnumVariant
	p.skipTrivia()
	for !p.at(ast.TokenRBrace) && !p.at(ast.TokenEOF) {
		before := p.pos
		anns := p.parseAnnotations()
		p.skipTrivia()
		if p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind) {
			name := p.advance().Text
			var value ast.Literal
			p.skipTrivia()
			if p.at(ast.TokenEqual) {
				p.advance()
				value = p.parseLiteral()
			}
			variants = append(variants, ast.EnumVariant{Name: name, Value: value, Annotations: anns})
		} else {
			p.errorf("enum variant", p.cur())
		}
		p.skipTrivia()
		if p.at(ast.TokenComma) {
			p.advance()
			p.skipTrivia()
		}
		if p.pos == before {
			p.recoverMember()
		}
	}
	p.expect(ast.TokenRBrace)
	return variants
}

func (p *Parser) parseLiteral() ast.Literal {
	p.skipTrivia()
	switch p.cur().Kind {
	case ast.TokenString:
		return ast.StringLiteral{Value: p.advance().Text}
	case ast.TokenNumber:
		return ast.NumberLiteral{Value: p.advance().Num}
	case ast.TokenBool:
		return ast.BoolLiteral{Value: p.advance().Bool}
	default:
		p.errorf("literal", p.cur())
		p.advance()
		return nil
	}
}

func (p *Parser) parseTypeDecl(anns []ast.Annotation) *ast.TypeDecl {
	pos := p.cur().Pos
	p.advance() // 'type'
	name, _ := p.identText()
	var params []string
	p.skipTrivia()
	if p.at(ast.TokenLess) {
		p.advance()
		for {
			ident, ok := p.identText()
			if ok {
				params = append(params, ident)
			}
			p.skipTrivia()
			if p.at(ast.TokenComma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(ast.TokenGreater)
	}
	p.expect(ast.TokenEqual)
	ty := p.parseTypeExpr()
	return &ast.TypeDecl{Name: name, TypeParams: params, Type: ty, Annotations: anns, Pos: pos}
}

func (p *Parser) parseDispatchDecl(anns []ast.Annotation) *ast.DispatchDecl {
	pos := p.cur().Pos
	p.advance()   // 'dispatch'
	p.identText() // leading namespace (e.g. "minecraft"); matching ignores it
	p.expect(ast.TokenColon)
	registry, _ := p.identText()
	src := ast.DispatchSource{Registry: registry}

	p.expect(ast.TokenLBracket)
	var targets []ast.DispatchTarget
	for {
		targets = append(targets, p.parseDispatchKey())
		p.skipTrivia()
		if p.at(ast.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(ast.TokenRBracket)

	p.skipTrivia()
	if p.at(ast.TokenLBracket) {
		// optional `[[Ident]]` dynamic-key marker; recorded on the source.
		p.advance()
		p.expect(ast.TokenLBracket)
		ident, _ := p.identText()
		src.Key = ident
		src.HasKey = true
		p.expect(ast.TokenRBracket)
		p.expect(ast.TokenRBracket)
	}

	p.expect(ast.TokenTo)
	targetTy := p.parseTypeExpr()
	return &ast.DispatchDecl{Source: src, Targets: targets, TargetType: targetTy, Annotations: anns, Pos: pos}
}

func (p *Parser) parseDispatchKey() ast.DispatchTarget {
	p.skipTrivia()
	switch {
	case p.at(ast.TokenPercent):
		p.advance()
		name, _ := p.identText()
		if name == "unknown" {
			return ast.DispatchTarget{IsUnknown: true}
		}
		return ast.DispatchTarget{Name: name}
	case p.at(ast.TokenString):
		return ast.DispatchTarget{Name: p.advance().Text}
	case p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind):
		return ast.DispatchTarget{Name: p.advance().Text}
	default:
		p.errorf("dispatch key", p.cur())
		p.advance()
		return ast.DispatchTarget{}
	}
}

// parseTypeExpr parses `SingleType ('@' Range)? ('[' ']' ('@' Range)?)? ('|' SingleType)*`.
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	first := p.parseSingleTypeWithSuffix()
	p.skipTrivia()
	if !p.at(ast.TokenPipe) {
		return first
	}
	variants := []ast.TypeExpr{first}
	for p.at(ast.TokenPipe) {
		p.advance()
		p.skipTrivia()
		// trailing '|' before a closing delimiter or EOF is permitted
		if p.at(ast.TokenRParen) || p.at(ast.TokenRBrace) || p.at(ast.TokenRBracket) || p.at(ast.TokenEOF) || p.at(ast.TokenComma) {
			break
		}
		variants = append(variants, p.parseSingleTypeWithSuffix())
		p.skipTrivia()
	}
	if len(variants) == 1 {
		return variants[0]
	}
	return ast.UnionType{Variants: variants, Pos: posOf(first)}
}

// parseSingleTypeWithSuffix parses a SingleType then any trailing
// `@ Range` / `[] (@ Range)?` suffixes, outermost array first.
func (p *Parser) parseSingleTypeWithSuffix() ast.TypeExpr {
	base := p.parseSingleType()
	for {
		p.skipTrivia()
		switch {
		case p.at(ast.TokenAt):
			r := p.parseRangeConstraint()
			if arr, ok := base.(ast.ArrayType); ok && arr.Constraint == nil {
				// `[T] @ n`: the range after the closing bracket is the array length.
				arr.Constraint = &r
				base = arr
			} else {
				base = ast.ConstrainedType{Base: base, Range: r, Pos: r.Pos}
			}
		case p.at(ast.TokenLBracket) && p.peekIsRBracket():
			pos := p.cur().Pos
			p.advance() // '['
			p.advance() // ']'
			arr := ast.ArrayType{Elem: base, Pos: pos}
			p.skipTrivia()
			if p.at(ast.TokenAt) {
				r := p.parseRangeConstraint()
				arr.Constraint = &r
			}
			base = arr
		default:
			return base
		}
	}
}

func (p *Parser) peekIsRBracket() bool {
	// lookahead without consuming: the token immediately following '[' must
	// be ']' for this to be an array suffix rather than a dynamic field.
	save := p.pos
	p.advance()
	ok := p.at(ast.TokenRBracket)
	p.pos = save
	return ok
}

func (p *Parser) parseSingleType() ast.TypeExpr {
	p.skipTrivia()
	pos := p.cur().Pos
	switch {
	case p.at(ast.TokenLBracket):
		p.advance()
		elem := p.parseTypeExpr()
		var c *ast.RangeConstraint
		p.skipTrivia()
		if p.at(ast.TokenAt) {
			r := p.parseRangeConstraint()
			c = &r
		}
		p.expect(ast.TokenRBracket)
		return ast.ArrayType{Elem: elem, Constraint: c, Pos: pos}
	case p.at(ast.TokenStruct):
		return *p.parseAnonStruct()
	case p.at(ast.TokenLParen):
		p.advance()
		inner := p.parseTypeExpr()
		p.expect(ast.TokenRParen)
		return inner
	case p.at(ast.TokenDotDotDot):
		p.advance()
		ip := p.parseImportPath()
		ns, reg := spreadNamespaceRegistry(ip)
		p.skipTrivia()
		if p.at(ast.TokenColon) {
			p.advance()
			ns = reg
			reg, _ = p.identText()
		}
		var dyn *ast.DynRef
		p.skipTrivia()
		if p.at(ast.TokenLBracket) {
			p.advance()
			p.expect(ast.TokenLBracket)
			d := p.parseDynRef()
			dyn = &d
			p.expect(ast.TokenRBracket)
			p.expect(ast.TokenRBracket)
		}
		return ast.SpreadType{Namespace: ns, Registry: reg, DynamicKey: dyn, Pos: pos}
	case p.at(ast.TokenString):
		return ast.LiteralType{Value: ast.StringLiteral{Value: p.advance().Text}, Pos: pos}
	case p.at(ast.TokenNumber):
		return ast.LiteralType{Value: ast.NumberLiteral{Value: p.advance().Num}, Pos: pos}
	case p.at(ast.TokenBool):
		return ast.LiteralType{Value: ast.BoolLiteral{Value: p.advance().Bool}, Pos: pos}
	case p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind):
		return p.parseIdentStartingType(pos)
	default:
		p.errorf("type", p.cur())
		p.advance()
		return ast.SimpleType{Name: "unknown", Pos: pos}
	}
}

// parseIdentStartingType disambiguates `Ident`, `Ident:Ident[...]`, and
// `Ident<Args>` — a generic applies only when `<` immediately follows an
// identifier used as a type.
func (p *Parser) parseIdentStartingType(pos ast.Pos) ast.TypeExpr {
	name := p.advance().Text
	p.skipTrivia()
	switch {
	case p.at(ast.TokenColon):
		p.advance()
		registry, _ := p.identText()
		p.skipTrivia()
		if p.at(ast.TokenLBracket) && p.peekIsDoubleBracketOrIdent() {
			p.advance()
			if p.at(ast.TokenLBracket) {
				p.advance()
				d := p.parseDynRef()
				p.expect(ast.TokenRBracket)
				p.expect(ast.TokenRBracket)
				return ast.SpreadType{Namespace: name, Registry: registry, DynamicKey: &d, Pos: pos}
			}
			key, _ := p.identText()
			p.expect(ast.TokenRBracket)
			return ast.SpreadType{Namespace: name, Registry: registry, DynamicKey: &ast.DynRef{Name: key}, Pos: pos}
		}
		return ast.SpreadType{Namespace: name, Registry: registry, Pos: pos}
	case p.at(ast.TokenLess):
		p.advance()
		var args []ast.TypeExpr
		args = append(args, p.parseTypeExpr())
		p.skipTrivia()
		for p.at(ast.TokenComma) {
			p.advance()
			args = append(args, p.parseTypeExpr())
			p.skipTrivia()
		}
		p.expect(ast.TokenGreater)
		return ast.GenericType{Name: name, Args: args, Pos: pos}
	default:
		return ast.SimpleType{Name: name, Pos: pos}
	}
}

func (p *Parser) peekIsDoubleBracketOrIdent() bool {
	save := p.pos
	p.advance() // consume outer '['
	ok := p.at(ast.TokenLBracket) || p.at(ast.TokenIdent) || isKeywordAsIdent(p.cur().Kind)
	p.pos = save
	return ok
}

// parseRangeConstraint parses `@ (Number '..' Number? | '..' Number | Number)`.
func (p *Parser) parseRangeConstraint() ast.RangeConstraint {
	pos := p.cur().Pos
	p.advance() // '@'
	p.skipTrivia()
	var r ast.RangeConstraint
	r.Pos = pos
	if p.at(ast.TokenDotDot) {
		p.advance()
		if p.at(ast.TokenNumber) {
			v := p.advance().Num
			r.Max = &v
		}
		return r
	}
	if p.at(ast.TokenNumber) {
		v := p.advance().Num
		p.skipTrivia()
		if p.at(ast.TokenDotDot) {
			p.advance()
			r.Min = &v
			if p.at(ast.TokenNumber) {
				max := p.advance().Num
				r.Max = &max
			}
			return r
		}
		r.Min = &v
		r.Max = &v
		return r
	}
	p.errorf("range", p.cur())
	return r
}

func posOf(t ast.TypeExpr) ast.Pos {
	switch v := t.(type) {
	case ast.SimpleType:
		return v.Pos
	case ast.ArrayType:
		return v.Pos
	case ast.UnionType:
		return v.Pos
	case ast.StructType:
		return v.Pos
	case ast.GenericType:
		return v.Pos
	case ast.ReferenceType:
		return v.Pos
	case ast.SpreadType:
		return v.Pos
	case ast.LiteralType:
		return v.Pos
	case ast.ConstrainedType:
		return v.Pos
	default:
		return ast.Pos{}
	}
}
