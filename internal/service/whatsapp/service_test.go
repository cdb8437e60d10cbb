package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/grainloss/internal/config"
	client "github.com/mamadbah2/grainloss/pkg/clients/whatsapp"
)

type clientStub struct {
	sent []client.SendTextMessageRequest
	fail map[string]error
}

func (c *clientStub) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	if err := c.fail[req.To]; err != nil {
		return nil, err
	}
	c.sent = append(c.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

func TestBroadcastSendsToEveryRecipient(t *testing.T) {
	stub := &clientStub{fail: map[string]error{"bad": errors.New("rejected")}}
	svc := NewAlertService(config.WhatsAppConfig{Recipients: []string{"a", "bad", "b"}}, stub, nil)

	err := svc.Broadcast(context.Background(), "weekly digest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "send to bad")
	require.Len(t, stub.sent, 2)
	assert.Equal(t, "a", stub.sent[0].To)
	assert.Equal(t, "b", stub.sent[1].To)
}

func TestBroadcastRejectsEmptyBody(t *testing.T) {
	svc := NewAlertService(config.WhatsAppConfig{Recipients: []string{"a"}}, &clientStub{}, nil)
	assert.ErrorIs(t, svc.Broadcast(context.Background(), "  "), ErrEmptyMessage)
	assert.ErrorIs(t, NewLogNotifier(nil).Broadcast(context.Background(), ""), ErrEmptyMessage)
}
