package reconcile

import (
	"strings"
	"unicode"

	libinjection "github.com/corazawaf/libinjection-go"
)

// CheckStatement rejects assembled text whose first token the driver would
// bind as a parameter.
func CheckStatement(text string) error {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if token := bindMarkerAt(trimmed, 0); token != "" {
		return &HazardError{Kind: HazardParameterLeakage, Fragment: "statement", Token: token}
	}
	return nil
}

// CheckFragment scans a caller-supplied fragment that is embedded verbatim.
// Quoted literals and bracketed names are skipped. $<digit> is not a marker
// here because T-SQL reads it as a money literal.
func CheckFragment(name, text string) error {
	var closing byte
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if closing != 0 {
			if ch == closing {
				// doubled quote is an escape
				if i+1 < len(text) && text[i+1] == closing {
					i++
					continue
				}
				closing = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			closing = ch
			continue
		case '[':
			closing = ']'
			continue
		case ';':
			return &HazardError{Kind: HazardStatementBreakout, Fragment: name, Token: ";"}
		case '-', '/':
			if pair := text[i:min(i+2, len(text))]; pair == "--" || pair == "/*" {
				return &HazardError{Kind: HazardStatementBreakout, Fragment: name, Token: pair}
			}
		}
		// $5 inside a fragment is a money literal
		if ch == '$' {
			continue
		}
		if token := bindMarkerAt(text, i); token != "" {
			return &HazardError{Kind: HazardParameterLeakage, Fragment: name, Token: token}
		}
	}
	return nil
}

// bindMarkerAt returns the bind marker starting at text[i], if any:
// @name (but not @@name), ?, :name (but not ::) and $1.
func bindMarkerAt(text string, i int) string {
	if i >= len(text) {
		return ""
	}
	prev := byte(0)
	if i > 0 {
		prev = text[i-1]
	}
	switch text[i] {
	case '?':
		return "?"
	case '@':
		if prev == '@' || (i+1 < len(text) && text[i+1] == '@') {
			return ""
		}
		return wordAt(text, i, isNameByte)
	case ':':
		if prev == ':' || (i+1 < len(text) && text[i+1] == ':') {
			return ""
		}
		return wordAt(text, i, isNameByte)
	case '$':
		return wordAt(text, i, isDigit)
	}
	return ""
}

func wordAt(text string, start int, first func(byte) bool) string {
	end := start + 1
	if end >= len(text) || !first(text[end]) {
		return ""
	}
	for end < len(text) && (isNameByte(text[end]) || isDigit(text[end])) {
		end++
	}
	return text[start:end]
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// screenIdentifier rejects identifier parts that libinjection fingerprints as
// SQL injection.
func screenIdentifier(field, value string) error {
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &ValidationError{
			Field:  field,
			Value:  value,
			Reason: "matches SQL injection fingerprint " + string(fingerprint),
		}
	}
	return nil
}
