package rewrite

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"
)

const maxRuleLine = 1024 * 1024

// ParseRules reads one `<pattern>\t<replacement>` rule per line. Surrounding
// whitespace is trimmed and the line is split on its first tab only, so a
// replacement may itself contain tabs. Blank lines are skipped. Rules that
// cannot compile are kept: they fail, and are reported, each time they apply.
func ParseRules(r io.Reader, timeout time.Duration) ([]*Rule, error) {
	rules := make([]*Rule, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRuleLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pattern, replacement, _ := strings.Cut(line, "\t")
		rule := newPatternRule(lineNo, pattern, replacement, timeout)
		if err := rule.Err(); err != nil {
			log.Warnf("rule file line %d (%s): %v, it will be skipped when applied", lineNo, pattern, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

func LoadRules(filename string, timeout time.Duration) ([]*Rule, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRules(f, timeout)
}
