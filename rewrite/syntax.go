package rewrite

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rule files are written with Python re conventions: (?P<name>...) groups and
// \1, \g<1>, \g<name> references in replacements. regexp2 speaks .NET syntax
// and numbers named groups after unnamed ones, so named groups are emitted as
// plain groups and every reference is resolved to its left to right index.

var (
	errBadEscape        = errors.New("bad escape (end of replacement)")
	errMissingGroupName = errors.New(`missing group name in \g<...>`)
)

var replacementEscapes = map[byte]byte{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// translatePattern returns the regexp2 form of pattern and the index of every
// named group.
func translatePattern(pattern string) (string, map[string]int, error) {
	names := make(map[string]int)
	if !strings.Contains(pattern, "(?P") {
		return pattern, names, nil
	}

	var b strings.Builder
	groups := 0
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		if inClass {
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '[':
			inClass = true
			b.WriteByte(c)
			// a leading ] is a literal
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		case strings.HasPrefix(pattern[i:], "(?P<"):
			end := strings.IndexByte(pattern[i:], '>')
			if end < 0 {
				return "", nil, errors.New("missing > in group name")
			}
			groups++
			names[pattern[i+4:i+end]] = groups
			b.WriteByte('(')
			i += end
		case strings.HasPrefix(pattern[i:], "(?P="):
			end := strings.IndexByte(pattern[i:], ')')
			if end < 0 {
				return "", nil, errors.New("missing ) in group reference")
			}
			name := pattern[i+4 : i+end]
			n, ok := names[name]
			if !ok {
				return "", nil, fmt.Errorf("unknown group name %q", name)
			}
			b.WriteString(`(?:\` + strconv.Itoa(n) + ")")
			i += end
		case c == '(':
			if i+1 == len(pattern) || pattern[i+1] != '?' {
				groups++
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), names, nil
}

// translateReplacement returns the regexp2 substitution for repl and the group
// numbers it references.
func translateReplacement(repl string, names map[string]int) (string, []int, error) {
	var b strings.Builder
	refs := make([]int, 0)

	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i == len(repl) {
			return "", nil, errBadEscape
		}
		c = repl[i]

		switch {
		case c == 'g':
			end := strings.IndexByte(repl[i:], '>')
			if i+1 >= len(repl) || repl[i+1] != '<' || end < 3 {
				return "", nil, errMissingGroupName
			}
			name := repl[i+2 : i+end]
			n, err := strconv.Atoi(name)
			if err != nil {
				var ok bool
				if n, ok = names[name]; !ok {
					return "", nil, fmt.Errorf("unknown group name %q", name)
				}
			}
			refs = append(refs, n)
			b.WriteString("${" + strconv.Itoa(n) + "}")
			i += end
		case c == '0':
			j := i + 1
			for j < len(repl) && j < i+3 && isOctal(repl[j]) {
				j++
			}
			v, _ := strconv.ParseUint(repl[i:j], 8, 8)
			b.WriteByte(byte(v))
			i = j - 1
		case isDigit(c):
			j := i + 1
			if j < len(repl) && isDigit(repl[j]) {
				j++
			}
			n, _ := strconv.Atoi(repl[i:j])
			refs = append(refs, n)
			b.WriteString("${" + repl[i:j] + "}")
			i = j - 1
		default:
			if e, ok := replacementEscapes[c]; ok {
				b.WriteByte(e)
			} else {
				// unknown escapes are kept as written
				b.WriteByte('\\')
				b.WriteByte(c)
			}
		}
	}

	return b.String(), refs, nil
}

// widen maps every byte of s to the rune of the same value so a body that is
// not UTF-8 survives the rune based matcher unchanged.
func widen(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		b.WriteRune(rune(s[i]))
	}
	return b.String()
}

// narrow reverses widen. Every rune of s must be below 256.
func narrow(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteByte(byte(r))
	}
	return b.String()
}
