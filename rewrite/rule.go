package rewrite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/samber/lo"
)

type Kind int

const (
	Literal Kind = iota
	Pattern
)

func (k Kind) String() string {
	if k == Literal {
		return "literal"
	}
	return "pattern"
}

// Rule is immutable once built and shared by every concurrent pass.
type Rule struct {
	Kind        Kind
	Pattern     string
	Replacement string
	Line        int // rule file line, 0 for the literal rule

	re    *regexp2.Regexp
	subst string
	// byte for byte variants used on bodies that are not valid UTF-8
	byteRe    *regexp2.Regexp
	byteSubst string
	err       error // set when the rule can never apply
}

func newLiteralRule(search, replace string) *Rule {
	return &Rule{
		Kind:        Literal,
		Pattern:     search,
		Replacement: replace,
	}
}

func newPatternRule(line int, pattern, replacement string, timeout time.Duration) *Rule {
	r := &Rule{
		Kind:        Pattern,
		Pattern:     pattern,
		Replacement: replacement,
		Line:        line,
	}
	r.err = r.compile(timeout)
	return r
}

func (r *Rule) compile(timeout time.Duration) error {
	if r.Pattern == "" {
		return ErrEmptyPattern
	}
	if r.Replacement == "" {
		return ErrEmptyReplacement
	}

	pattern, names, err := translatePattern(r.Pattern)
	if err != nil {
		return err
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return err
	}

	subst, refs, err := translateReplacement(r.Replacement, names)
	if err != nil {
		return err
	}
	numbers := re.GetGroupNumbers()
	for _, ref := range refs {
		if !lo.Contains(numbers, ref) {
			return fmt.Errorf("invalid group reference %d", ref)
		}
	}

	byteRe := re
	if wide := widen(pattern); wide != pattern {
		if byteRe, err = regexp2.Compile(wide, regexp2.None); err != nil {
			return err
		}
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
		byteRe.MatchTimeout = timeout
	}

	r.re = re
	r.subst = subst
	r.byteRe = byteRe
	r.byteSubst = widen(subst)
	return nil
}

// Err is the reason a pattern rule will be skipped on every pass, nil if it is usable.
func (r *Rule) Err() error {
	return r.err
}

func (r *Rule) apply(body string) (string, error) {
	if r.Kind == Literal {
		return strings.ReplaceAll(body, r.Pattern, r.Replacement), nil
	}
	if r.err != nil {
		return body, r.err
	}
	if utf8.ValidString(body) {
		out, err := r.re.Replace(body, r.subst, -1, -1)
		if err != nil {
			return body, err
		}
		return out, nil
	}

	out, err := r.byteRe.Replace(widen(body), r.byteSubst, -1, -1)
	if err != nil {
		return body, err
	}
	return narrow(out), nil
}

func (r *Rule) String() string {
	if r.Kind == Literal {
		return fmt.Sprintf("literal '%s' -> '%s'", r.Pattern, r.Replacement)
	}
	return fmt.Sprintf("pattern#%d '%s' -> '%s'", r.Line, r.Pattern, r.Replacement)
}

func (r *Rule) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{})
	m["kind"] = r.Kind.String()
	m["pattern"] = r.Pattern
	m["replacement"] = r.Replacement
	if r.Line > 0 {
		m["line"] = r.Line
	}
	if r.err != nil {
		m["error"] = r.err.Error()
	}
	return json.Marshal(m)
}
