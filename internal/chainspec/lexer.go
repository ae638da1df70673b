package chainspec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkInt
	tkFloat
	tkString

	tkDot
	tkComma
	tkLParen
	tkRParen
	tkLBrace
	tkRBrace
	tkQuestion
	tkColon
	tkArrow
	tkAssign

	tkAdd
	tkSub
	tkMul
	tkDiv
	tkMod

	tkEq
	tkNe
	tkLt
	tkLe
	tkGt
	tkGe

	tkAnd
	tkOr
	tkNot
	tkCoalesce
)

var tokenNames = map[tokenKind]string{
	tkEOF:      "end of input",
	tkIdent:    "identifier",
	tkInt:      "integer",
	tkFloat:    "number",
	tkString:   "string",
	tkDot:      "'.'",
	tkComma:    "','",
	tkLParen:   "'('",
	tkRParen:   "')'",
	tkLBrace:   "'{'",
	tkRBrace:   "'}'",
	tkQuestion: "'?'",
	tkColon:    "':'",
	tkArrow:    "'=>'",
	tkAssign:   "'='",
	tkAdd:      "'+'",
	tkSub:      "'-'",
	tkMul:      "'*'",
	tkDiv:      "'/'",
	tkMod:      "'%'",
	tkEq:       "'=='",
	tkNe:       "'!='",
	tkLt:       "'<'",
	tkLe:       "'<='",
	tkGt:       "'>'",
	tkGe:       "'>='",
	tkAnd:      "'&&'",
	tkOr:       "'||'",
	tkNot:      "'!'",
	tkCoalesce: "'??'",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset
	i    int64
	f    float64
}

// punctuation, longest first.
var punct = []struct {
	text string
	kind tokenKind
}{
	{"=>", tkArrow},
	{"==", tkEq},
	{"!=", tkNe},
	{"<=", tkLe},
	{">=", tkGe},
	{"&&", tkAnd},
	{"||", tkOr},
	{"??", tkCoalesce},
	{".", tkDot},
	{",", tkComma},
	{"(", tkLParen},
	{")", tkRParen},
	{"{", tkLBrace},
	{"}", tkRBrace},
	{"?", tkQuestion},
	{":", tkColon},
	{"=", tkAssign},
	{"+", tkAdd},
	{"-", tkSub},
	{"*", tkMul},
	{"/", tkDiv},
	{"%", tkMod},
	{"<", tkLt},
	{">", tkGt},
	{"!", tkNot},
}

// lex splits src into tokens. The last token is always tkEOF.
func lex(src string) ([]token, error) {
	var toks []token
	cur := 0
	for {
		// Whitespace and // comments.
		for cur < len(src) {
			r, sz := utf8.DecodeRuneInString(src[cur:])
			if unicode.IsSpace(r) {
				cur += sz
				continue
			}
			if strings.HasPrefix(src[cur:], "//") {
				nl := strings.IndexByte(src[cur:], '\n')
				if nl < 0 {
					cur = len(src)
				} else {
					cur += nl + 1
				}
				continue
			}
			break
		}
		if cur == len(src) {
			return append(toks, token{kind: tkEOF, pos: cur}), nil
		}

		r, sz := utf8.DecodeRuneInString(src[cur:])
		switch {
		case r == utf8.RuneError && sz == 1:
			return nil, syntaxErr(src, cur, "invalid utf8 character")

		case r == '_' || unicode.IsLetter(r):
			start := cur
			for cur < len(src) {
				r, sz := utf8.DecodeRuneInString(src[cur:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				cur += sz
			}
			toks = append(toks, token{kind: tkIdent, text: src[start:cur], pos: start})

		case r >= '0' && r <= '9':
			tok, next, err := lexNumber(src, cur)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			cur = next

		case r == '"' || r == '\'':
			tok, next, err := lexString(src, cur, r)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			cur = next

		default:
			matched := false
			for _, p := range punct {
				if strings.HasPrefix(src[cur:], p.text) {
					toks = append(toks, token{kind: p.kind, text: p.text, pos: cur})
					cur += len(p.text)
					matched = true
					break
				}
			}
			if !matched {
				return nil, syntaxErr(src, cur, fmt.Sprintf("unexpected character %q", r))
			}
		}
	}
}

func lexNumber(src string, start int) (token, int, error) {
	cur := start
	isFloat := false
	for cur < len(src) {
		c := src[cur]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !isFloat && cur+1 < len(src) && src[cur+1] >= '0' && src[cur+1] <= '9':
			isFloat = true
		case (c == 'e' || c == 'E') && cur > start:
			isFloat = true
			if cur+1 < len(src) && (src[cur+1] == '+' || src[cur+1] == '-') {
				cur++
			}
		default:
			goto done
		}
		cur++
	}
done:
	text := src[start:cur]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, 0, syntaxErr(src, start, fmt.Sprintf("invalid number %q", text))
		}
		return token{kind: tkFloat, text: text, pos: start, f: f}, cur, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, 0, syntaxErr(src, start, fmt.Sprintf("invalid integer %q", text))
	}
	return token{kind: tkInt, text: text, pos: start, i: i}, cur, nil
}

func lexString(src string, start int, quote rune) (token, int, error) {
	var sb strings.Builder
	cur := start + 1
	for {
		if cur >= len(src) {
			return token{}, 0, syntaxErr(src, start, "string literal is not closed")
		}
		r, sz := utf8.DecodeRuneInString(src[cur:])
		cur += sz
		switch r {
		case quote:
			return token{kind: tkString, text: sb.String(), pos: start}, cur, nil
		case '\\':
			if cur >= len(src) {
				return token{}, 0, syntaxErr(src, start, "string literal is not closed")
			}
			esc, sz := utf8.DecodeRuneInString(src[cur:])
			cur += sz
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteRune(esc)
			default:
				return token{}, 0, syntaxErr(src, cur-sz-1, fmt.Sprintf("unknown escape \\%c", esc))
			}
		default:
			sb.WriteRune(r)
		}
	}
}
