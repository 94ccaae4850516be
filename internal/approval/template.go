package approval

import (
	"bytes"
	"os"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sdr-enrich/internal/model"
)

const defaultTemplate = `
system: |
  You write short, friendly first-touch sales emails for an SDR team.
  Reply with the subject on the first line as "Subject: <subject>",
  then a blank line, then the plain-text body. No signature block.
prompt: |
  Write an outreach email to {{ .Name }} <{{ .Lead.Email }}>.
  {{- with .Lead.Title }}
  Title: {{ . }}
  {{- end }}
  {{- with .Lead.Company }}
  Company: {{ . }}
  {{- end }}
  {{- with .Lead.Industry }}
  Industry: {{ . }}
  {{- end }}
  {{- with .Lead.CompanySize }}
  Company size: {{ . }}
  {{- end }}
  {{- with .Lead.Location }}
  Location: {{ . }}
  {{- end }}
  {{- with .Description }}
  About the company: {{ . }}
  {{- end }}
  Keep it under 120 words and reference one concrete detail above.
`

// PromptTemplate is the drafting prompt, loaded from YAML with "system" and
// "prompt" keys. The prompt is a text/template rendered with promptData.
type PromptTemplate struct {
	System string `yaml:"system"`
	Prompt string `yaml:"prompt"`

	tmpl *template.Template
}

type promptData struct {
	Lead        *model.Lead
	Name        string
	Description string
}

// DefaultTemplate returns the built-in drafting prompt.
func DefaultTemplate() *PromptTemplate {
	t, err := ParseTemplate([]byte(defaultTemplate))
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTemplate reads a prompt template file. An empty path yields the
// built-in template.
func LoadTemplate(path string) (*PromptTemplate, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "approval: read template %s", path)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes and compiles a YAML prompt template.
func ParseTemplate(data []byte) (*PromptTemplate, error) {
	var t PromptTemplate
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "approval: parse template")
	}
	if t.Prompt == "" {
		return nil, eris.New("approval: template has no prompt")
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(t.Prompt)
	if err != nil {
		return nil, eris.Wrap(err, "approval: compile template")
	}
	t.tmpl = tmpl
	return &t, nil
}

// Render fills the prompt for lead.
func (t *PromptTemplate) Render(lead *model.Lead) (string, error) {
	data := promptData{Lead: lead, Name: lead.FullName()}
	if data.Name == "" {
		data.Name = lead.Email
	}
	if d, err := model.ParseEnrichmentData(lead.EnrichmentData); err == nil && d != nil {
		if s, ok := d.Extra["description"].(string); ok {
			data.Description = s
		}
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "approval: render template")
	}
	return buf.String(), nil
}
