package asm

// TokenKind tags a lexical token according to the closed token set the
// grammar is built from.
type TokenKind int

const (
	Whitespace TokenKind = iota
	LineEnd
	Separator
	Identifier
	Hex
	Number
	StringLiteral
	Label
	SpecialIdentifier
	IDGrab
	SizeGrab
	Selection
	Range
	Shift
	VarAssignment
	OpenParen
	ClosedParen
	Comment
	NumericSlice
)

var tokenKindNames = [...]string{
	Whitespace:        "Whitespace",
	LineEnd:           "LineEnd",
	Separator:         "Separator",
	Identifier:        "Identifier",
	Hex:               "Hex",
	Number:            "Number",
	StringLiteral:     "StringLiteral",
	Label:             "Label",
	SpecialIdentifier: "SpecialIdentifier",
	IDGrab:            "IDGrab",
	SizeGrab:          "SizeGrab",
	Selection:         "Selection",
	Range:             "Range",
	Shift:             "Shift",
	VarAssignment:     "VarAssignment",
	OpenParen:         "OpenParen",
	ClosedParen:       "ClosedParen",
	Comment:           "Comment",
	NumericSlice:      "NumericSlice",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "TokenKind(?)"
}

// Token is one lexeme recognised by the tokenizer, tagged with its kind
// and carrying its original source text and byte offset.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Offset int
}

func (t Token) String() string { return t.Kind.String() + "(" + t.Lexeme + ")" }
