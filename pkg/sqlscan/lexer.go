// Package sqlscan tokenizes SQL text coarsely: words, literals and
// punctuation, with comments skipped. It knows enough about quoting to find
// statement boundaries and keywords, and does not parse.
package sqlscan

import (
	"strings"
	"unicode"
)

// Kind classifies a token.
type Kind int

// Token kinds.
const (
	EOF         Kind = iota
	Word             // bare identifier or keyword
	Number           // numeric literal
	String           // '...' or $tag$...$tag$
	QuotedIdent      // "..." or `...`
	Semicolon
	LParen
	RParen
	Symbol // any other character
)

// Token is one lexical unit of the input.
type Token struct {
	Kind Kind
	// Literal is the word as written, or the unescaped content of a
	// string or quoted identifier.
	Literal string
	// Start and End are byte offsets of the token in the input.
	Start int
	End   int
}

// Upper returns the literal upper-cased, for keyword comparison.
func (t Token) Upper() string {
	return strings.ToUpper(t.Literal)
}

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token, or an EOF token at the end of input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.atEOF() {
		return Token{Kind: EOF, Start: len(l.input), End: len(l.input)}
	}

	var tok Token
	switch {
	case l.ch == '\'':
		tok = Token{Kind: String, Literal: l.readQuoted('\'')}
	case l.ch == '"' || l.ch == '`':
		tok = Token{Kind: QuotedIdent, Literal: l.readQuoted(l.ch)}
	case l.ch == '$' && l.dollarTag() != "":
		tok = Token{Kind: String, Literal: l.readDollarQuoted()}
	case l.ch == ';':
		l.readChar()
		tok = Token{Kind: Semicolon, Literal: ";"}
	case l.ch == '(':
		l.readChar()
		tok = Token{Kind: LParen, Literal: "("}
	case l.ch == ')':
		l.readChar()
		tok = Token{Kind: RParen, Literal: ")"}
	case isLetter(l.ch) || l.ch == '_':
		tok = Token{Kind: Word, Literal: l.readIdentifier()}
	case isDigit(l.ch):
		tok = Token{Kind: Number, Literal: l.readNumber()}
	default:
		l.readChar()
		tok = Token{Kind: Symbol, Literal: l.input[start:l.pos]}
	}
	tok.Start = start
	tok.End = l.pos
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			for !l.atEOF() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return
		}
	}
}

// readQuoted reads a literal delimited by quote. A doubled quote stands for
// one quote character. An unterminated literal runs to the end of input.
func (l *Lexer) readQuoted(quote byte) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for !l.atEOF() {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String()
}

// dollarTag returns the opening tag ($$ or $name$) at the current position,
// or "" when the '$' does not open a dollar-quoted string ($1 placeholders).
func (l *Lexer) dollarTag() string {
	j := l.pos + 1
	if j < len(l.input) && isDigit(l.input[j]) {
		return ""
	}
	for j < len(l.input) && (isLetter(l.input[j]) || isDigit(l.input[j]) || l.input[j] == '_') {
		j++
	}
	if j < len(l.input) && l.input[j] == '$' {
		return l.input[l.pos : j+1]
	}
	return ""
}

func (l *Lexer) readDollarQuoted() string {
	tag := l.dollarTag()
	bodyStart := l.pos + len(tag)

	end := strings.Index(l.input[bodyStart:], tag)
	next := len(l.input)
	body := l.input[bodyStart:]
	if end >= 0 {
		body = l.input[bodyStart : bodyStart+end]
		next = bodyStart + end + len(tag)
	}
	for l.pos < next {
		l.readChar()
	}
	return body
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens of input, ending with an EOF token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens
		}
	}
}

// Split splits a script into statements on semicolons outside literals and
// comments. Each statement is trimmed; comments inside it are kept.
// Chunks holding only whitespace or comments are dropped.
func Split(script string) []string {
	var (
		stmts    []string
		segStart int
		hasToken bool
	)
	l := NewLexer(script)
	for {
		tok := l.NextToken()
		if tok.Kind == Semicolon || tok.Kind == EOF {
			if hasToken {
				stmts = append(stmts, strings.TrimSpace(script[segStart:tok.Start]))
			}
			if tok.Kind == EOF {
				return stmts
			}
			segStart = tok.End
			hasToken = false
			continue
		}
		hasToken = true
	}
}
