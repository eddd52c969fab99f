package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	content := strings.Join([]string{
		"foo\tbar",
		"",
		"  spaced\tout  ",
		"tabs\tin\tthe\treplacement",
		"no-tab-at-all",
		"(broken\tx",
	}, "\r\n")

	rules, err := ParseRules(strings.NewReader(content), 0)
	require.NoError(t, err)
	require.Len(t, rules, 5)

	assert.Equal(t, "foo", rules[0].Pattern)
	assert.Equal(t, "bar", rules[0].Replacement)
	assert.Equal(t, 1, rules[0].Line)

	assert.Equal(t, "spaced", rules[1].Pattern)
	assert.Equal(t, "out", rules[1].Replacement)
	assert.Equal(t, 3, rules[1].Line)

	assert.Equal(t, "tabs", rules[2].Pattern)
	assert.Equal(t, "in\tthe\treplacement", rules[2].Replacement)

	// kept, fails when applied
	assert.Equal(t, "no-tab-at-all", rules[3].Pattern)
	assert.ErrorIs(t, rules[3].Err(), ErrEmptyReplacement)
	assert.Error(t, rules[4].Err())

	for _, r := range rules {
		assert.Equal(t, Pattern, r.Kind)
	}
}

func TestParseRulesEmpty(t *testing.T) {
	rules, err := ParseRules(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoadRules(t *testing.T) {
	filename := writeRuleFile(t, `<h1>(.*?)</h1>`+"\t"+`<h1>\1!</h1>`)
	rules, err := LoadRules(filename, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	out, err := rules[0].apply("<h1>a</h1><h1>b</h1>")
	require.NoError(t, err)
	assert.Equal(t, "<h1>a!</h1><h1>b!</h1>", out)
}
