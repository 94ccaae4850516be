package perplexity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Person is a candidate profile returned by FindPeople.
type Person struct {
	Name        string `json:"name"`
	Company     string `json:"company"`
	Title       string `json:"title"`
	LinkedInURL string `json:"linkedin_url"`
}

const peopleSystemPrompt = `You find professional profiles of people. ` +
	`Answer with a JSON array only, no prose. Each element has the keys ` +
	`"name", "company", "title" and "linkedin_url". Use "" for unknown values. ` +
	`Return [] when nobody plausible is found.`

// FindPeople asks the model for public professional profiles matching name
// and parses the JSON array it returns. An optional hint (such as an email
// address) narrows the search.
func FindPeople(ctx context.Context, c Client, name, hint string) ([]Person, error) {
	prompt := fmt.Sprintf("Find up to 5 people named %q.", name)
	if hint != "" {
		prompt += fmt.Sprintf(" They may be associated with %q.", hint)
	}

	resp, err := c.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: peopleSystemPrompt},
			{Role: "user", Content: prompt},
		},
		SearchDomains: []string{"linkedin.com"},
	})
	if err != nil {
		return nil, err
	}
	content := resp.Content()
	if content == "" {
		return nil, nil
	}
	return parsePeople(content)
}

// parsePeople extracts the first JSON array in content. Models sometimes wrap
// the answer in a fenced code block.
func parsePeople(content string) ([]Person, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, eris.Errorf("perplexity: no JSON array in response: %.200s", content)
	}
	var people []Person
	if err := json.Unmarshal([]byte(content[start:end+1]), &people); err != nil {
		return nil, eris.Wrap(err, "perplexity: parse people")
	}
	out := people[:0]
	for _, p := range people {
		if strings.TrimSpace(p.Name) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
