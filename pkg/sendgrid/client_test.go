package sendgrid

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

type stubSender struct {
	resp  *rest.Response
	err   error
	calls int
	last  *mail.SGMailV3
}

func (s *stubSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.calls++
	s.last = email
	return s.resp, s.err
}

func testConfig() config.MailConfig {
	return config.MailConfig{FromAddress: "no-reply@gigflow.app", FromName: "GigFlow"}
}

func TestSendAcceptedReturnsMessageID(t *testing.T) {
	sender := &stubSender{resp: &rest.Response{
		StatusCode: http.StatusAccepted,
		Headers:    map[string][]string{"X-Message-Id": {"msg-123"}},
	}}
	client, err := NewWithSender(sender, testConfig(), logger.Nop())
	require.NoError(t, err)

	receipt, err := client.Send(context.Background(), Message{
		To:      "a@b.com",
		ToName:  "A",
		Subject: "Application received",
		Text:    "plain",
		HTML:    "<p>rich</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-123", receipt.MessageID)
	assert.Equal(t, 1, sender.calls)
	require.NotNil(t, sender.last)
	assert.Equal(t, "no-reply@gigflow.app", sender.last.From.Address)
	assert.Equal(t, "Application received", sender.last.Subject)
	require.Len(t, sender.last.Content, 2)
}

func TestSendClassifiesRejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    pkgerrors.Code
		message string
	}{
		{"bad recipient", http.StatusBadRequest, `{"errors":[{"message":"invalid recipient","field":"personalizations.0.to"}]}`, pkgerrors.CodePermanentChannel, "invalid recipient"},
		{"auth", http.StatusUnauthorized, `{"errors":[{"message":"The provided authorization grant is invalid"}]}`, pkgerrors.CodePermanentChannel, "The provided authorization grant is invalid"},
		{"throttled", http.StatusTooManyRequests, ``, pkgerrors.CodeTransientChannel, "sendgrid responded 429"},
		{"outage", http.StatusBadGateway, `upstream down`, pkgerrors.CodeTransientChannel, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewWithSender(&stubSender{resp: &rest.Response{StatusCode: tt.status, Body: tt.body}}, testConfig(), nil)
			require.NoError(t, err)

			_, err = client.Send(context.Background(), Message{To: "a@b.com"})
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tt.code, typed.Code())
			assert.Equal(t, tt.message, typed.Message())
		})
	}
}

func TestSendTransportErrorIsTransient(t *testing.T) {
	client, err := NewWithSender(&stubSender{err: errors.New("connection reset")}, testConfig(), nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), Message{To: "a@b.com"})
	assert.Equal(t, pkgerrors.CodeTransientChannel, pkgerrors.CodeOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Send(ctx, Message{To: "a@b.com"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "mail send timed out", typed.Message())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.MailConfig{FromAddress: "x@y.z"}, nil)
	assert.Error(t, err)

	_, err = NewWithSender(&stubSender{}, config.MailConfig{}, nil)
	assert.Error(t, err)

	_, err = NewWithSender(nil, testConfig(), nil)
	assert.Error(t, err)
}
