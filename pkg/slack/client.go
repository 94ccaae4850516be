// Package slack posts and updates interactive approval cards.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	goslack "github.com/slack-go/slack"
)

// Action IDs carried by the card buttons.
const (
	ActionApprove = "approval_approve"
	ActionReject  = "approval_reject"
)

// Client posts approval cards.
type Client interface {
	PostCard(ctx context.Context, channel string, card Card) (channelID, ts string, err error)
	UpdateCard(ctx context.Context, channelID, ts string, card Card) error
}

// Card is the rendered approval request.
type Card struct {
	Title   string
	Fields  []Field
	Subject string
	Body    string
	// ApproveValue and RejectValue are the button payloads. Buttons are
	// omitted when Decision is set.
	ApproveValue string
	RejectValue  string
	Decision     string
}

// Field is a label/value pair shown in the card header.
type Field struct {
	Label string
	Value string
}

// StatusError is returned when Slack rejects a call at the HTTP level.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("slack: unexpected status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

type apiClient struct {
	api *goslack.Client
}

// NewClient creates a client for a bot token. apiURL overrides the Slack
// endpoint when non-empty.
func NewClient(token, apiURL string) Client {
	var opts []goslack.Option
	if apiURL != "" {
		opts = append(opts, goslack.OptionAPIURL(apiURL))
	}
	return &apiClient{api: goslack.New(token, opts...)}
}

func (c *apiClient) PostCard(ctx context.Context, channel string, card Card) (string, string, error) {
	ch, ts, err := c.api.PostMessageContext(ctx, channel,
		goslack.MsgOptionText(card.Title, false),
		goslack.MsgOptionBlocks(Blocks(card)...),
	)
	if err != nil {
		return "", "", classify(err, "slack: post card")
	}
	return ch, ts, nil
}

func (c *apiClient) UpdateCard(ctx context.Context, channelID, ts string, card Card) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts,
		goslack.MsgOptionText(card.Title, false),
		goslack.MsgOptionBlocks(Blocks(card)...),
	)
	if err != nil {
		return classify(err, "slack: update card")
	}
	return nil
}

func classify(err error, msg string) error {
	var rl *goslack.RateLimitedError
	if errors.As(err, &rl) {
		return &StatusError{StatusCode: http.StatusTooManyRequests, Message: rl.Error()}
	}
	var sc goslack.StatusCodeError
	if errors.As(err, &sc) {
		return &StatusError{StatusCode: sc.Code, Message: sc.Status}
	}
	return eris.Wrap(err, msg)
}

// Blocks renders a card as Block Kit blocks.
func Blocks(card Card) []goslack.Block {
	header := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, "*"+card.Title+"*", false, false),
		fieldObjects(card.Fields), nil,
	)
	draft := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Subject:* %s\n\n%s", card.Subject, card.Body), false, false),
		nil, nil,
	)
	blocks := []goslack.Block{header, goslack.NewDividerBlock(), draft}

	if card.Decision != "" {
		blocks = append(blocks, goslack.NewContextBlock("decision",
			goslack.NewTextBlockObject(goslack.MarkdownType, card.Decision, false, false)))
		return blocks
	}

	approve := goslack.NewButtonBlockElement(ActionApprove, card.ApproveValue,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Approve", false, false))
	approve.Style = goslack.StylePrimary
	reject := goslack.NewButtonBlockElement(ActionReject, card.RejectValue,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Reject", false, false))
	reject.Style = goslack.StyleDanger
	return append(blocks, goslack.NewActionBlock("approval", approve, reject))
}

func fieldObjects(fields []Field) []*goslack.TextBlockObject {
	var out []*goslack.TextBlockObject
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		out = append(out, goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*%s*\n%s", f.Label, f.Value), false, false))
	}
	return out
}
