package formula

import (
	"fmt"
	"strconv"

	"github.com/grafana/regexp"
)

// TokenKind classifies lexer output.
type TokenKind int

const (
	// TokenKey is a ",X=" clause boundary; Text holds the key letter.
	TokenKey TokenKind = iota

	// TokenParam is a {P}N parameter token; Param holds N.
	TokenParam

	// TokenComma is a comma that does not start a clause.
	TokenComma

	// TokenText is literal text.
	TokenText
)

func (k TokenKind) String() string {
	switch k {
	case TokenKey:
		return "key"
	case TokenParam:
		return "param"
	case TokenComma:
		return "comma"
	case TokenText:
		return "text"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Clause keys.
const (
	KeyReference = "R"
	KeyFrom      = "F"
	KeyTo        = "T"
	KeyOperator  = "P"
	KeyNegate    = "N"
	KeyField     = "K"
	KeyAggregate = "E"
	KeyOutput    = "O"
)

// Token is one lexeme. Pos is the byte offset in the normalized formula.
type Token struct {
	Kind  TokenKind
	Text  string
	Param int
	Pos   int
}

type lexRule struct {
	kind    TokenKind
	pattern *regexp.Regexp
}

// lexRules are tried in order at each position; the first match wins. A
// comma only starts a clause when followed by a known key and '=', so values
// may contain commas.
var lexRules = []lexRule{
	{kind: TokenKey, pattern: regexp.MustCompile(`^,([RFTPNKEO])=`)},
	{kind: TokenParam, pattern: regexp.MustCompile(`^\{P\}([0-9]+)`)},
	{kind: TokenComma, pattern: regexp.MustCompile(`^,`)},
	{kind: TokenText, pattern: regexp.MustCompile(`^[^,{]+`)},
	{kind: TokenText, pattern: regexp.MustCompile(`^\{`)},
}

// Lex splits formula text into tokens. Adjacent text tokens are merged.
func Lex(text string) ([]Token, error) {
	var tokens []Token
	for pos := 0; pos < len(text); {
		tok, n, err := lexOne(text[pos:], pos)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenText && len(tokens) > 0 && tokens[len(tokens)-1].Kind == TokenText {
			tokens[len(tokens)-1].Text += tok.Text
		} else {
			tokens = append(tokens, tok)
		}
		pos += n
	}
	return tokens, nil
}

func lexOne(rest string, pos int) (Token, int, error) {
	for _, rule := range lexRules {
		m := rule.pattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		tok := Token{Kind: rule.kind, Text: m[0], Param: -1, Pos: pos}
		switch rule.kind {
		case TokenKey:
			tok.Text = m[1]
		case TokenParam:
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Token{}, 0, &FormulaError{Pos: pos, Message: fmt.Sprintf("bad parameter index %q", m[1])}
			}
			tok.Param = n
		}
		return tok, len(m[0]), nil
	}
	return Token{}, 0, &FormulaError{Pos: pos, Message: fmt.Sprintf("unexpected input %q", rest[:1])}
}
