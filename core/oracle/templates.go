package oracle

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

func templateBase(templateName, templatetext string) (*template.Template, error) {
	return template.New(templateName).Funcs(sprig.FuncMap()).Parse(templatetext)
}

func templateExecute(template *template.Template, data interface{}) (string, error) {
	prompt := bytes.NewBuffer([]byte{})
	err := template.Execute(prompt, data)
	if err != nil {
		return "", err
	}
	return prompt.String(), nil
}

func renderTemplate(name, text string, data interface{}) (string, error) {
	t, err := templateBase(name, text)
	if err != nil {
		return "", err
	}
	return templateExecute(t, data)
}

// ArchiveFormat is the three-part layout every stored memory follows.
const ArchiveFormat = "# function_name ## error_description ### error_analysis"

const bugReportTemplate = `You are tasked with generating a bug report for a Go function that failed.
Function:
{{ .Source }}
Error: {{ .Failure }}
Your response must be a comprehensive string including only crucial information on the bug report.`

const summarizeTemplate = `You are tasked with archiving a bug report for a Go function that failed.
Bug Report: {{ .BugReport | trim }}.
Your response must be a concise string including only crucial information on the bug report for future reference.
Format: {{ .Format }}`

const mergeTemplate = `Update the following memories based on the new interaction:
Current Bug Report: {{ .BugReport | trim }}
Prior Bug Report: {{ .Prior | trim }}
Your response must be a concise but cumulative string including only crucial information on the current and prior bug reports for future reference.
Format: {{ .Format }}`

const patchTemplate = `You are tasked with fixing a Go function that failed.
Function:
{{ .Source }}
Error: {{ .Failure }}
You must provide a fix for the present error only.
The fix should handle the failing case gracefully by returning a descriptive error message value, for example as a string result.
Do not panic and do not return a non-nil error in your fix.
The function must use the exact same name and the exact same parameter names and types. You may change the result types.
Only import packages from this list: {{ .Allowed | join ", " }}.
Your response must contain only the function definition, with its imports if any, and no additional text.
Your response must not contain any additional formatting, such as code delimiters or language declarations.`

const strategyTemplate = `You are tasked with choosing a remediation for a Go function that failed.
Function:
{{ .Source }}
Error: {{ .Failure }}
Bug Report: {{ .BugReport | trim }}
Pick exactly one strategy:
- return-error-sentinel: return a descriptive error message instead of failing (set "message").
- wrap-with-default: return a fixed fallback value instead of failing (set "default").
- retry-with-clamped-input: retry once with numeric arguments clamped into [min, max] (set "min" and/or "max").
Explain your choice in "reason".`
