package memory

import (
	"bytes"
	"text/template"
)

const (
	extractionSystemPrompt = "You are a fact extraction assistant. Extract important, memorable facts from user messages. Return only valid JSON."
	sessionSystemPrompt    = "You are a conversation summarizer. Create concise, informative summaries."
	lifetimeSystemPrompt   = "You are a user profile generator. Create concise profiles from conversation summaries."

	// summaryTemperature is used for extraction and both summary kinds.
	summaryTemperature = 0.3
)

var extractionPromptTmpl = template.Must(template.New("extraction").Parse(
	`Extract up to {{.Max}} important facts from this message that would be useful to remember in future conversations.
Return only a JSON array of objects with "fact" and "importance" fields.
Importance is a number between 0.0 and 1.0.

Message: {{printf "%q" .Text}}

Return format: [{"fact": "extracted fact", "importance": 0.8}]`))

var sessionPromptTmpl = template.Must(template.New("session").Parse(
	`Summarize this conversation in 3-5 concise bullet points covering key topics, decisions and important information:

{{range .Messages}}{{.Role}}: {{.Content}}
{{end}}
Summary:`))

var lifetimePromptTmpl = template.Must(template.New("lifetime").Funcs(template.FuncMap{"inc": inc}).Parse(
	`Create a concise user profile by condensing these session summaries into key characteristics, preferences and important information about the user:

{{range $i, $s := .Summaries}}Session {{inc $i}}: {{$s.Text}}
{{end}}
User Profile:`))

// inc is a small helper for numbering sessions from 1
func inc(i int) int { return i + 1 }

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
