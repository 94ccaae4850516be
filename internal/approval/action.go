package approval

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sdr-enrich/internal/model"
)

// ActionKind is the reviewer's decision.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)

// Action is the command carried by an approval card button.
type Action struct {
	Kind   ActionKind `json:"kind" validate:"required,oneof=approve reject"`
	LeadID string     `json:"leadId" validate:"required,uuid"`
}

var (
	// ErrInvalidAction is returned for a button value that is not a valid Action.
	ErrInvalidAction = eris.New("approval: invalid action")
	// ErrInvalidTransition is returned when a lead cannot take the decision.
	ErrInvalidTransition = eris.New("approval: invalid transition")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encode renders the action as a button value.
func (a Action) Encode() string {
	b, _ := json.Marshal(a)
	return string(b)
}

// ParseAction decodes and validates a button value.
func ParseAction(value string) (Action, error) {
	var a Action
	if err := json.Unmarshal([]byte(value), &a); err != nil {
		return Action{}, eris.Wrapf(ErrInvalidAction, "decode: %v", err)
	}
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Action{}, eris.Wrapf(ErrInvalidAction, "field %s failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return Action{}, eris.Wrap(ErrInvalidAction, err.Error())
	}
	return a, nil
}

// Transition returns the status a lead in from moves to on kind. Only an
// ENRICHED lead can be decided.
func Transition(from model.LeadStatus, kind ActionKind) (model.LeadStatus, error) {
	if from != model.LeadStatusEnriched {
		return "", eris.Wrapf(ErrInvalidTransition, "%s on %s lead", kind, from)
	}
	switch kind {
	case ActionApprove:
		return model.LeadStatusApproved, nil
	case ActionReject:
		return model.LeadStatusRejected, nil
	default:
		return "", eris.Wrapf(ErrInvalidTransition, "unknown action %q", kind)
	}
}
