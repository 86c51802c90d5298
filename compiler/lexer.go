package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for slip source
// ---------------------------------------------------------------------------
//
// The source is an ASCII byte stream. Separators (space, tab, CR, LF) vanish
// before reaching the token stream; a newline advances the row counter and
// resets the column. Each token is recognised as belonging to one of four
// categories, in decreasing precedence:
//
//	literals > keywords > identifiers > unknown

// isSeparator reports whether position i is a separator or the end of input.
func isSeparator(src string, i int) bool {
	if i >= len(src) {
		return true
	}
	switch src[i] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// isIdentChar reports whether position i can be part of an identifier.
// The identifier alphabet is [0-9A-Z_a-z]; a leading digit is permitted.
func isIdentChar(src string, i int) bool {
	if i >= len(src) {
		return false
	}
	c := src[i]
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'Z' ||
		c == '_' ||
		c >= 'a' && c <= 'z'
}

// isLiteralChar reports whether position i can be part of a numeric literal:
// decimal digits plus the hex digit letters.
func isLiteralChar(src string, i int) bool {
	if i >= len(src) {
		return false
	}
	c := src[i]
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'F' ||
		c >= 'a' && c <= 'f'
}

// signAt returns +1 or -1 for an explicit sign at position i, 0 otherwise.
func signAt(src string, i int) int {
	if i >= len(src) {
		return 0
	}
	switch src[i] {
	case '+':
		return 1
	case '-':
		return -1
	}
	return 0
}

// getToken recognises a single context-free token starting at position i,
// which must not be a separator. It returns the token type, its length in
// bytes, and the decoded literal value where applicable.
func getToken(src string, i int) (typ TokenType, length int, i32 int32, f32 float32) {
	// Check for a numeric literal. A literal may start with a sign, may have
	// a hexadecimal prefix, and may contain a single decimal point; any
	// subsequent sign or decimal point voids the literal.
	end := i
	sign := signAt(src, end)
	hex := false

	if sign != 0 {
		end++
	}
	if end+1 < len(src) && src[end] == '0' && (src[end+1] == 'x' || src[end+1] == 'X') {
		end += 2
		hex = true
	}
	for isLiteralChar(src, end) {
		end++
	}
	if end < len(src) && src[end] == '.' {
		end++
		for isLiteralChar(src, end) {
			end++
		}
	}

	// Heuristics to tell literals from literal-prefixed identifiers: if the
	// candidate ends with an identifier character, the next byte must not be
	// an identifier character.
	atPoint := end < len(src) && src[end] == '.'
	if end != i && signAt(src, end) == 0 && !atPoint &&
		(!isIdentChar(src, end-1) || !isIdentChar(src, end)) {
		text := src[i:end]

		if hex {
			// Decode the numeral by absolute value, then apply the sign.
			off := 2
			if sign != 0 {
				off = 3
			}
			if u, err := strconv.ParseUint(text[off:], 16, 32); err == nil {
				v := int32(uint32(u))
				if sign < 0 {
					v = -v
				}
				return TokenLitI32, end - i, v, 0
			}
		} else {
			if v, err := strconv.ParseInt(text, 10, 32); err == nil {
				return TokenLitI32, end - i, int32(v), 0
			}
		}

		// An integer that failed to decode may still be a float.
		if f, err := strconv.ParseFloat(text, 32); err == nil {
			return TokenLitF32, end - i, 0, float32(f)
		}
	}

	// Check for keywords, front-to-back. The same boundary test applies, so
	// that e.g. "print1" becomes an identifier rather than the keyword
	// "print" followed by "1".
	for k, kw := range keywords {
		if strings.HasPrefix(src[i:], kw) &&
			(!isIdentChar(src, i+len(kw)-1) || !isIdentChar(src, i+len(kw))) {
			return TokenType(k + 1), len(kw), 0, 0
		}
	}

	// Check for an identifier: a maximal run of identifier characters.
	end = i
	for isIdentChar(src, end) {
		end++
	}
	if end != i {
		return TokenIdent, end - i, 0, 0
	}

	return TokenUnknown, 0, 0, 0
}

// Tokenize converts a source buffer into a token stream, tracking 0-based
// rows and columns. Tokens reference slices of the source buffer, which must
// outlive them.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	var row, col uint32

	i := 0
	for i < len(src) {
		if isSeparator(src, i) {
			if src[i] == '\n' {
				row++
				col = 0
			} else {
				col++
			}
			i++
			continue
		}

		typ, length, i32, f32 := getToken(src, i)
		if typ == TokenUnknown {
			return nil, &SourceError{Row: row, Col: col, Msg: "syntax error"}
		}

		tokens = append(tokens, Token{
			Type: typ,
			Text: src[i : i+length],
			Row:  row,
			Col:  col,
			I32:  i32,
			F32:  f32,
		})

		col += uint32(length)
		i += length
	}

	return tokens, nil
}
