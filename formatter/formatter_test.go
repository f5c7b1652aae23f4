package formatter

import (
	"go/token"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gnolang/matchall/internal"
	"github.com/gnolang/matchall/internal/rewrite"
	tt "github.com/gnolang/matchall/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var switchSource = &internal.SourceCode{
	Lines: []string{
		"package main",
		"",
		"func f(x int) {",
		"\tswitch x {",
		"\tcase 1:",
		"\t\tbreak",
		"\t}",
		"}",
	},
}

func TestFormatGeneralIssue(t *testing.T) {
	issues := []tt.Issue{
		{
			Rule:     rewrite.RuleBreakInGroup,
			Filename: "test.go",
			Start:    token.Position{Line: 6, Column: 3},
			End:      token.Position{Line: 6, Column: 8},
			Message:  "break inside a case group would leave the whole matchall switch",
			Severity: tt.SeverityError,
		},
	}

	expected := `error: break-in-group
 --> test.go:6:3
  |
6 | break
  | ~~~~~
  = break inside a case group would leave the whole matchall switch

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, switchSource))
}

func TestFormatIssueWithSuggestion(t *testing.T) {
	issues := []tt.Issue{
		{
			Rule:       rewrite.RuleBreakInGroup,
			Filename:   "test.go",
			Start:      token.Position{Line: 6, Column: 3},
			End:        token.Position{Line: 6, Column: 8},
			Message:    "unexpected break",
			Suggestion: "if done {\n\treturn\n}",
			Note:       "groups always run to completion",
			Severity:   tt.SeverityWarning,
		},
	}

	expected := `warning: break-in-group
 --> test.go:6:3
  |
6 | break
  | ~~~~~
  = unexpected break

Suggestion:
  |
  | if done {
  |         return
  | }
  |

Note: groups always run to completion

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, switchSource))
}

func TestFormatHeadlineIssue(t *testing.T) {
	issues := []tt.Issue{
		{
			Rule:     rewrite.RuleMissingFallback,
			Filename: "test.go",
			Start:    token.Position{Line: 4, Column: 2},
			End:      token.Position{Line: 7, Column: 3},
			Message:  "no default clause",
			Note:     "mark the switch //matchall:nofallback if this is intended",
			Severity: tt.SeverityWarning,
		},
	}

	expected := `warning: missing-fallback
 --> test.go:4:2
  |
4 | switch x {
no default clause

Note: mark the switch //matchall:nofallback if this is intended

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, switchSource))
}

func TestFormatIssueWithoutSource(t *testing.T) {
	issues := []tt.Issue{
		{
			Rule:     rewrite.RuleOrphanDirective,
			Filename: "gone.go",
			Start:    token.Position{Line: 3, Column: 1},
			End:      token.Position{Line: 3, Column: 11},
			Message:  "directive is not attached to a switch",
			Severity: tt.SeverityInfo,
		},
	}

	expected := `info: orphan-directive
 --> gone.go:3:1
  |
  | directive is not attached to a switch

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, nil))
}

func TestCalculateVisualColumn(t *testing.T) {
	tests := []struct {
		line     string
		column   int
		expected int
	}{
		{"hello", 1, 0},
		{"hello", 3, 2},
		{"\tx", 2, 8},
		{"  \tx", 4, 8},
		{"\t\tbreak", 8, 21},
		{"anything", -1, 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, calculateVisualColumn(tc.line, tc.column), "line %q column %d", tc.line, tc.column)
	}
}

func TestFindCommonIndent(t *testing.T) {
	assert.Equal(t, "\t", findCommonIndent([]string{"\tswitch x {", "", "\t\tbreak", "\t}"}))
	assert.Equal(t, "", findCommonIndent([]string{"func f() {", "\treturn"}))
	assert.Equal(t, "", findCommonIndent(nil))
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "        x", expandTabs("\tx"))
	assert.Equal(t, "ab      c", expandTabs("ab\tc"))
	assert.Equal(t, "plain", expandTabs("plain"))
}
