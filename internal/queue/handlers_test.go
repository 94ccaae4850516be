package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/pkg/mailer"
)

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type memActivities struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
	acts  []model.Activity
}

func (m *memActivities) GetLead(_ context.Context, id string) (*model.Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return l, nil
}

func (m *memActivities) AppendActivity(_ context.Context, a *model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acts = append(m.acts, *a)
	return nil
}

func emailTicket(t *testing.T, out model.OutboundEmail) model.QueueItem {
	t.Helper()
	b, err := json.Marshal(out)
	require.NoError(t, err)
	return model.QueueItem{ID: "e1", Kind: model.QueueEmail, LeadID: "lead-1", Payload: b}
}

func TestEmailHandler_Sent(t *testing.T) {
	log := &memActivities{leads: map[string]*model.Lead{"lead-1": {ID: "lead-1", TeamID: "team-1"}}}
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mailer.Message{
		To: "ada@acme.io", ToName: "Ada", Subject: "Hello", Body: "Hi Ada",
	}).Return(nil).Once()

	h := NewEmailHandler(sender, log)
	err := h.Handle(context.Background(), emailTicket(t, model.OutboundEmail{
		To: "ada@acme.io", ToName: "Ada", Subject: "Hello", Body: "Hi Ada",
	}))
	require.NoError(t, err)
	sender.AssertExpectations(t)

	require.Len(t, log.acts, 1)
	assert.Equal(t, model.ActivityEmailSent, log.acts[0].Type)
	assert.Equal(t, "team-1", log.acts[0].TeamID)
}

func TestEmailHandler_SendFails(t *testing.T) {
	log := &memActivities{leads: map[string]*model.Lead{"lead-1": {ID: "lead-1"}}}
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp refused")).Once()

	h := NewEmailHandler(sender, log)
	err := h.Handle(context.Background(), emailTicket(t, model.OutboundEmail{To: "ada@acme.io", Subject: "Hello"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp refused")

	require.Len(t, log.acts, 1)
	assert.Equal(t, model.ActivityEmailFailed, log.acts[0].Type)
	assert.Contains(t, string(log.acts[0].Metadata), "smtp refused")
}

func TestEmailHandler_BadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"no recipient", `{"subject":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			h := NewEmailHandler(sender, &memActivities{})
			err := h.Handle(context.Background(), model.QueueItem{ID: "e1", Payload: []byte(tt.payload)})
			require.Error(t, err)
			sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}
