package formatter

// GeneralIssueFormatter prints the offending lines with the issue range
// underlined.
type GeneralIssueFormatter struct{}

func (f *GeneralIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent}}

{{- if .Suggestion }}
{{suggestion .Suggestion .Padding}}
{{- end }}

{{- if .Note }}
{{note .Note}}
{{- end }}
`
}

// HeadlineIssueFormatter is used for issues that span a whole switch
// statement or file, where the snippet would only repeat the source.
type HeadlineIssueFormatter struct{}

func (f *HeadlineIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .StartLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{message .Message}}
{{- if .Suggestion }}
{{suggestion .Suggestion .Padding}}
{{- end }}

{{- if .Note }}
{{note .Note}}
{{- end }}
`
}
