package approval

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sdr-enrich/internal/cost"
	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/pkg/anthropic"
)

// Draft is a generated outreach email.
type Draft struct {
	Subject string
	Body    string
	// CostUSD is the priced model usage, zero when unknown.
	CostUSD float64
}

// Drafter writes an outreach email for an enriched lead.
type Drafter interface {
	Draft(ctx context.Context, lead *model.Lead) (Draft, error)
}

// LLMDrafter drafts with a language model.
type LLMDrafter struct {
	client    anthropic.Client
	costs     *cost.Calculator
	tmpl      *PromptTemplate
	model     string
	maxTokens int64
}

// NewLLMDrafter creates a drafter. A nil template uses DefaultTemplate.
func NewLLMDrafter(client anthropic.Client, tmpl *PromptTemplate, model string, maxTokens int64) *LLMDrafter {
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMDrafter{client: client, costs: cost.NewCalculator(nil), tmpl: tmpl, model: model, maxTokens: maxTokens}
}

// Draft implements Drafter.
func (d *LLMDrafter) Draft(ctx context.Context, lead *model.Lead) (Draft, error) {
	prompt, err := d.tmpl.Render(lead)
	if err != nil {
		return Draft{}, err
	}
	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.model,
		MaxTokens: d.maxTokens,
		System:    d.tmpl.System,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Draft{}, eris.Wrap(err, "approval: draft email")
	}
	draft := ParseDraft(resp.Text())
	if draft.Body == "" {
		return Draft{}, eris.New("approval: model returned an empty draft")
	}
	draft.CostUSD = d.costs.Tokens(d.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return draft, nil
}

// ParseDraft splits a "Subject: ..." first line from the body. Text without
// a subject line becomes the body under a generic subject.
func ParseDraft(text string) Draft {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if subj, ok := strings.CutPrefix(strings.TrimSpace(first), "Subject:"); ok {
		return Draft{Subject: strings.TrimSpace(subj), Body: strings.TrimSpace(rest)}
	}
	return Draft{Subject: "Quick question", Body: text}
}
