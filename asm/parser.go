package asm

import (
	"strconv"
	"strings"

	"github.com/LuisNordlSlav/arsenalVM/vm"
)

// planEntry is one element of the linear data plan the parser builds
// before resolution (spec §3): either a literal byte, or a deferred
// reference to a label or size that resolves once every declaration in
// the source has been seen.
type planEntry interface {
	// reserved is the number of bytes this entry contributes to the final
	// image, known without resolving any symbol.
	reserved() int
	resolve(labels, sizes map[string]uint64) ([]byte, error)
}

type byteEntry byte

func (byteEntry) reserved() int { return 1 }
func (e byteEntry) resolve(map[string]uint64, map[string]uint64) ([]byte, error) {
	return []byte{byte(e)}, nil
}

type labelRequest struct {
	name             string
	start, stop      int
	increment        uint64
}

func (r labelRequest) reserved() int { return r.stop - r.start + 1 }
func (r labelRequest) resolve(labels, _ map[string]uint64) ([]byte, error) {
	addr, ok := labels[r.name]
	if !ok {
		return nil, errUndefined(ErrUndefinedLabel, r.name)
	}
	return leSlice(addr+r.increment, r.start, r.stop), nil
}

type sizeRequest struct {
	name        string
	start, stop int
}

func (r sizeRequest) reserved() int { return r.stop - r.start + 1 }
func (r sizeRequest) resolve(_ map[string]uint64, sizes map[string]uint64) ([]byte, error) {
	size, ok := sizes[r.name]
	if !ok {
		return nil, errUndefined(ErrUndefinedSize, r.name)
	}
	return leSlice(size, r.start, r.stop), nil
}

func leSlice(v uint64, start, stop int) []byte {
	var le [8]byte
	for i := 0; i < 8; i++ {
		le[i] = byte(v >> (8 * uint(i)))
	}
	return le[start : stop+1]
}

func errUndefined(kind error, name string) error {
	return wrapName(kind, name)
}

// parser walks a token stream building the data plan and the label/size
// symbol tables in one pass; byte offsets are known incrementally because
// every plan entry's reserved length is fixed at parse time even when its
// eventual bytes are deferred.
type parser struct {
	tokens []Token
	pos    int

	plan   []planEntry
	labels map[string]uint64
	sizes  map[string]uint64
	consts map[string]uint64
	pc     uint64
}

func newParser(tokens []Token) *parser {
	return &parser{
		tokens: tokens,
		labels: make(map[string]uint64),
		sizes:  make(map[string]uint64),
		consts: make(map[string]uint64),
	}
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) peekKind() (TokenKind, bool) {
	t, ok := p.peek()
	if !ok {
		return 0, false
	}
	return t.Kind, true
}

func (p *parser) next() (Token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	t, ok := p.next()
	if !ok {
		return Token{}, posErr(wrap(ErrUnexpectedToken, "expected "+kind.String()+", got end of input"), p.offsetAtEnd())
	}
	if t.Kind != kind {
		return Token{}, posErr(wrap(ErrUnexpectedToken, "expected "+kind.String()+", got "+t.Kind.String()), t.Offset)
	}
	return t, nil
}

func (p *parser) offsetAtEnd() int {
	if len(p.tokens) == 0 {
		return 0
	}
	last := p.tokens[len(p.tokens)-1]
	return last.Offset + len(last.Lexeme)
}

func (p *parser) emitByte(b byte) {
	p.plan = append(p.plan, byteEntry(b))
	p.pc++
}

func (p *parser) emitEntry(e planEntry) {
	p.plan = append(p.plan, e)
	p.pc += uint64(e.reserved())
}

// parseProgram consumes every statement until the token stream is empty.
func (p *parser) parseProgram() error {
	for {
		if _, ok := p.peek(); !ok {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}

func (p *parser) parseStatement() error {
	kind, ok := p.peekKind()
	if !ok {
		return nil
	}
	switch kind {
	case Label:
		return p.parseLabelDecl()
	case OpenParen:
		return p.parseCapture()
	case Identifier:
		return p.parseInstruction()
	case SpecialIdentifier:
		return p.parseDirective()
	default:
		t, _ := p.peek()
		return posErr(wrap(ErrUnexpectedToken, "unexpected "+kind.String()), t.Offset)
	}
}

func (p *parser) parseLabelDecl() error {
	if _, err := p.expect(Label); err != nil {
		return err
	}
	name, err := p.expect(Identifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(LineEnd); err != nil {
		return err
	}
	p.labels[name.Lexeme] = p.pc
	return nil
}

func (p *parser) parseCapture() error {
	if _, err := p.expect(OpenParen); err != nil {
		return err
	}

	var sizeHead string
	var fixedWidth = -1

	kind, ok := p.peekKind()
	switch {
	case ok && kind == Identifier:
		t, _ := p.next()
		sizeHead = t.Lexeme
	case ok && (kind == Number || kind == Hex):
		t, _ := p.next()
		n, err := parseInt(t)
		if err != nil {
			return posErr(err, t.Offset)
		}
		fixedWidth = int(n)
	case ok && kind == ClosedParen:
		// empty head: `() name = ...`
	default:
		pos := p.offsetAtEnd()
		if t, has := p.peek(); has {
			pos = t.Offset
		}
		return posErr(wrap(ErrUnexpectedToken, "invalid capture head"), pos)
	}

	if _, err := p.expect(ClosedParen); err != nil {
		return err
	}
	name, err := p.expect(Identifier)
	if err != nil {
		return err
	}

	start := p.pc
	p.labels[name.Lexeme] = start

	hasEquals := false
	if k, ok := p.peekKind(); ok && k == VarAssignment {
		p.next()
		hasEquals = true
	}

	// Asymmetry preserved deliberately: empty-head and size-head captures
	// require '=' before their argument sequence; a fixed-width capture
	// accepts a bare `(N) name;` with no arguments at all.
	if fixedWidth < 0 && !hasEquals {
		t, _ := p.peek()
		pos := p.offsetAtEnd()
		if t.Kind != 0 {
			pos = t.Offset
		}
		return posErr(wrap(ErrUnexpectedToken, "capture requires '=' before its argument sequence"), pos)
	}

	if hasEquals {
		if k, ok := p.peekKind(); !ok || k != LineEnd {
			if err := p.parseArgSequence(); err != nil {
				return err
			}
		}
	}
	if _, err := p.expect(LineEnd); err != nil {
		return err
	}

	emitted := p.pc - start
	if fixedWidth >= 0 {
		if emitted > uint64(fixedWidth) {
			return posErr(wrap(ErrCaptureOverflow, name.Lexeme), name.Offset)
		}
		for i := emitted; i < uint64(fixedWidth); i++ {
			p.emitByte(0)
		}
	} else if sizeHead != "" {
		p.sizes[sizeHead] = p.pc - start
	}
	return nil
}

// parseDirective handles the two additive, non-macro directives carried
// over from the original's predecessor parser: `.equ` folds a named
// constant in at parse time, `.org` moves the byte cursor forward,
// zero-filling the gap it leaves behind.
func (p *parser) parseDirective() error {
	tok, err := p.expect(SpecialIdentifier)
	if err != nil {
		return err
	}
	switch tok.Lexeme {
	case ".equ":
		name, err := p.expect(Identifier)
		if err != nil {
			return err
		}
		t, ok := p.peek()
		if !ok || (t.Kind != Number && t.Kind != Hex) {
			pos := p.offsetAtEnd()
			if ok {
				pos = t.Offset
			}
			return posErr(wrap(ErrUnexpectedToken, "expected Number or Hex after .equ name"), pos)
		}
		p.next()
		v, err := parseInt(t)
		if err != nil {
			return posErr(err, t.Offset)
		}
		p.consts[name.Lexeme] = v
	case ".org":
		t, ok := p.peek()
		if !ok || (t.Kind != Number && t.Kind != Hex) {
			pos := p.offsetAtEnd()
			if ok {
				pos = t.Offset
			}
			return posErr(wrap(ErrUnexpectedToken, "expected Number or Hex after .org"), pos)
		}
		p.next()
		v, err := parseInt(t)
		if err != nil {
			return posErr(err, t.Offset)
		}
		if v < p.pc {
			return posErr(wrap(ErrUnexpectedToken, ".org cannot move the cursor backwards"), tok.Offset)
		}
		for p.pc < v {
			p.emitByte(0)
		}
	default:
		return posErr(wrap(ErrUnexpectedToken, "unknown directive "+tok.Lexeme), tok.Offset)
	}
	_, err = p.expect(LineEnd)
	return err
}

func (p *parser) parseInstruction() error {
	nameTok, err := p.expect(Identifier)
	if err != nil {
		return err
	}
	op, ok := vm.OpcodeByName(nameTok.Lexeme)
	if !ok {
		return posErr(wrap(ErrUnknownInstr, nameTok.Lexeme), nameTok.Offset)
	}
	p.emitByte(byte(op))
	p.emitByte(byte(op >> 8))

	if k, ok := p.peekKind(); ok && k == Selection {
		p.next()
	}
	if k, ok := p.peekKind(); ok && k != LineEnd {
		if err := p.parseArgSequence(); err != nil {
			return err
		}
	}
	_, err = p.expect(LineEnd)
	return err
}

func (p *parser) parseArgSequence() error {
	if err := p.parseArg(); err != nil {
		return err
	}
	for {
		k, ok := p.peekKind()
		if !ok || k == LineEnd {
			return nil
		}
		if k == Separator {
			p.next()
		}
		if k, ok := p.peekKind(); !ok || k == LineEnd {
			return nil
		}
		if err := p.parseArg(); err != nil {
			return err
		}
	}
}

func (p *parser) parseArg() error {
	t, ok := p.peek()
	if !ok {
		return posErr(wrap(ErrUnexpectedToken, "expected argument, got end of input"), p.offsetAtEnd())
	}
	switch t.Kind {
	case Identifier:
		p.next()
		id, ok := vm.SysCallByName(t.Lexeme)
		if !ok {
			return posErr(wrap(ErrUnknownSyscall, t.Lexeme), t.Offset)
		}
		p.emitByte(byte(id))
		return nil
	case Number, Hex:
		p.next()
		n, err := parseInt(t)
		if err != nil {
			return posErr(err, t.Offset)
		}
		p.emitByte(byte(n))
		return nil
	case StringLiteral:
		p.next()
		s, err := unquote(t.Lexeme)
		if err != nil {
			return posErr(err, t.Offset)
		}
		for i := 0; i < len(s); i++ {
			p.emitByte(s[i])
		}
		return nil
	case IDGrab:
		p.next()
		name, err := p.expect(Identifier)
		if err != nil {
			return err
		}
		a, b, k, err := p.parseSlice()
		if err != nil {
			return err
		}
		p.emitEntry(labelRequest{name: name.Lexeme, start: a, stop: b, increment: k})
		return nil
	case SizeGrab:
		p.next()
		name, err := p.expect(Identifier)
		if err != nil {
			return err
		}
		a, b, _, err := p.parseSlice()
		if err != nil {
			return err
		}
		p.emitEntry(sizeRequest{name: name.Lexeme, start: a, stop: b})
		return nil
	case NumericSlice:
		p.next()
		numTok, ok := p.peek()
		if !ok {
			return posErr(wrap(ErrUnexpectedToken, "expected Number, Hex or .equ constant after '#'"), p.offsetAtEnd())
		}
		var n uint64
		switch numTok.Kind {
		case Number, Hex:
			p.next()
			v, err := parseInt(numTok)
			if err != nil {
				return posErr(err, numTok.Offset)
			}
			n = v
		case Identifier:
			p.next()
			v, ok := p.consts[numTok.Lexeme]
			if !ok {
				return posErr(wrapName(ErrUnexpectedToken, numTok.Lexeme), numTok.Offset)
			}
			n = v
		default:
			return posErr(wrap(ErrUnexpectedToken, "expected Number, Hex or .equ constant after '#'"), numTok.Offset)
		}
		a, b, _, err := p.parseSlice()
		if err != nil {
			return err
		}
		for _, bt := range leSlice(n, a, b) {
			p.emitByte(bt)
		}
		return nil
	default:
		return posErr(wrap(ErrUnexpectedToken, "unexpected "+t.Kind.String()+" in argument position"), t.Offset)
	}
}

// parseSlice parses the optional trailing `:a->b=>k` operator, applying
// the documented defaults (a=0, b=7, k=0) to whichever parts are absent.
func (p *parser) parseSlice() (a, b int, k uint64, err error) {
	a, b, k = 0, 7, 0
	kind, ok := p.peekKind()
	if !ok || kind != Selection {
		return a, b, k, nil
	}
	p.next()
	aTok, err := p.expect(Number)
	if err != nil {
		return 0, 0, 0, err
	}
	av, err := parseInt(aTok)
	if err != nil {
		return 0, 0, 0, posErr(err, aTok.Offset)
	}
	a = int(av)

	if kind, ok := p.peekKind(); ok && kind == Range {
		p.next()
		bTok, err := p.expect(Number)
		if err != nil {
			return 0, 0, 0, err
		}
		bv, err := parseInt(bTok)
		if err != nil {
			return 0, 0, 0, posErr(err, bTok.Offset)
		}
		b = int(bv)
	}

	if kind, ok := p.peekKind(); ok && kind == Shift {
		p.next()
		kTok, err := p.expect(Number)
		if err != nil {
			return 0, 0, 0, err
		}
		kv, err := parseInt(kTok)
		if err != nil {
			return 0, 0, 0, posErr(err, kTok.Offset)
		}
		k = kv
	}

	if a < 0 || a > b || b > 7 {
		return 0, 0, 0, posErr(ErrSliceOutOfRange, aTok.Offset)
	}
	return a, b, k, nil
}

func parseInt(t Token) (uint64, error) {
	if t.Kind == Hex {
		return strconv.ParseUint(strings.TrimPrefix(t.Lexeme, "0x"), 16, 64)
	}
	return strconv.ParseUint(t.Lexeme, 10, 64)
}

func unquote(lexeme string) (string, error) {
	inner := lexeme[1 : len(lexeme)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) && inner[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String(), nil
}

// resolve walks the data plan in order, producing the final byte image.
func (p *parser) resolve() ([]byte, error) {
	out := make([]byte, 0, p.pc)
	for _, e := range p.plan {
		bs, err := e.resolve(p.labels, p.sizes)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	if uint64(len(out)) != p.pc {
		panic(wrap(ErrUnexpectedToken, "resolved image length does not match declared byte count"))
	}
	return out, nil
}
