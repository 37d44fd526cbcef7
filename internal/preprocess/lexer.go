package preprocess

import (
	"strings"
	"text/scanner"
	"unicode"

	"github.com/hook-system/hook/internal/models"
)

// Placeholders substituted for user-defined identifiers
const (
	PlaceholderVariable = "V"
	PlaceholderFunction = "F"
)

// token is one lexeme with the line it starts on
type token struct {
	text  string
	line  int
	ident bool
}

// operators lists the multi-character operators of both families; the lexer
// joins adjacent punctuation while the joined text is still in this set.
var operators = map[string]bool{
	"++": true, "--": true, "->": true, "::": true,
	"==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "<<": true, ">>": true, ">>>": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
	"->*": true, "...": true, "..": true,
}

var cKeywords = wordSet(`
	auto break case char const continue default do double else enum extern
	float for goto if inline int long register restrict return short signed
	sizeof static struct switch typedef union unsigned void volatile while
	_Bool _Complex bool true false nullptr NULL
	class namespace template typename public private protected virtual
	friend operator new delete this throw try catch using explicit mutable
	const_cast static_cast dynamic_cast reinterpret_cast constexpr noexcept
	include define undef ifdef ifndef endif elif pragma
`)

var javaKeywords = wordSet(`
	abstract assert boolean break byte case catch char class const continue
	default do double else enum extends final finally float for goto if
	implements import instanceof int interface long native new package
	private protected public return short static strictfp super switch
	synchronized this throw throws transient try void volatile while
	true false null var record yield
`)

func wordSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

func keywordsFor(lang models.Language) map[string]bool {
	if lang == models.LanguageJava {
		return javaKeywords
	}
	return cKeywords
}

// numberSuffixes are the C and Java integer and floating literal suffixes
const numberSuffixes = "uUlLfFdD"

// lex splits src into tokens, dropping comments and whitespace. Char and
// string literals follow C and Java escape rules: a backslash takes the next
// rune whatever it is. Java text blocks are read when textBlocks is set. It
// stops at the first error and returns the tokens read before it.
func lex(src string, textBlocks bool) ([]token, string) {
	var (
		s       scanner.Scanner
		lexErr  string
		errSeen bool
	)
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanComments | scanner.SkipComments
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || (i > 0 && unicode.IsDigit(ch))
	}
	s.Error = func(s *scanner.Scanner, msg string) {
		if !errSeen {
			errSeen = true
			lexErr = s.Pos().String() + ": " + msg
		}
	}

	tokens := make([]token, 0, len(src)/4)
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		if errSeen {
			break
		}
		line := s.Position.Line
		text := s.TokenText()

		switch tok {
		case scanner.Ident:
			tokens = append(tokens, token{text: text, line: line, ident: true})
		case scanner.Int, scanner.Float:
			for strings.ContainsRune(numberSuffixes, s.Peek()) {
				text += string(s.Next())
			}
			tokens = append(tokens, token{text: text, line: line})
		case '\'', '"':
			lit, ok := scanLiteral(&s, tok, textBlocks)
			if !ok {
				errSeen = true
				lexErr = s.Pos().String() + ": literal not terminated"
				break
			}
			tokens = append(tokens, token{text: lit, line: line})
		default:
			for operators[text+string(s.Peek())] {
				text += string(s.Next())
			}
			tokens = append(tokens, token{text: text, line: line})
		}
	}

	return tokens, lexErr
}

// scanLiteral reads the rest of a char or string literal whose opening quote
// was just scanned. It reports false when the literal runs into a newline or
// the end of input.
func scanLiteral(s *scanner.Scanner, quote rune, textBlocks bool) (string, bool) {
	var b strings.Builder
	b.WriteRune(quote)

	if quote == '"' && s.Peek() == '"' {
		b.WriteRune(s.Next())
		if !textBlocks || s.Peek() != '"' {
			return b.String(), true
		}
		b.WriteRune(s.Next())
		return scanTextBlock(s, &b)
	}

	for {
		ch := s.Next()
		switch ch {
		case scanner.EOF, '\n':
			return b.String(), false
		case '\\':
			b.WriteRune(ch)
			esc := s.Next()
			if esc == scanner.EOF {
				return b.String(), false
			}
			b.WriteRune(esc)
		default:
			b.WriteRune(ch)
			if ch == quote {
				return b.String(), true
			}
		}
	}
}

// scanTextBlock reads a Java text block up to its closing triple quote.
func scanTextBlock(s *scanner.Scanner, b *strings.Builder) (string, bool) {
	quotes := 0
	for {
		ch := s.Next()
		if ch == scanner.EOF {
			return b.String(), false
		}
		b.WriteRune(ch)

		switch ch {
		case '\\':
			esc := s.Next()
			if esc == scanner.EOF {
				return b.String(), false
			}
			b.WriteRune(esc)
			quotes = 0
		case '"':
			quotes++
			if quotes == 3 {
				return b.String(), true
			}
		default:
			quotes = 0
		}
	}
}
