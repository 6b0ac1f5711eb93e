package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

const messageIDHeader = "X-Message-Id"

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("mail from address is required")
)

// Sender is the subset of the SendGrid SDK the client needs.
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is a single-recipient transactional email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Receipt is the provider acknowledgment for an accepted message.
type Receipt struct {
	MessageID  string
	StatusCode int
}

// Client sends transactional mail through SendGrid.
type Client struct {
	sender Sender
	from   *mail.Email
	logg   *logger.Logger
}

// NewClient builds a SendGrid-backed client from explicit configuration.
func NewClient(cfg config.MailConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	return NewWithSender(sg.NewSendClient(key), cfg, logg)
}

// NewWithSender wires a custom sender, mainly for tests.
func NewWithSender(sender Sender, cfg config.MailConfig, logg *logger.Logger) (*Client, error) {
	if sender == nil {
		return nil, errors.New("sendgrid sender is required")
	}
	from := strings.TrimSpace(cfg.FromAddress)
	if from == "" {
		return nil, errFromRequired
	}
	return &Client{
		sender: sender,
		from:   mail.NewEmail(cfg.FromName, from),
		logg:   logg,
	}, nil
}

// Send delivers one message. Errors carry TRANSIENT_CHANNEL_FAILURE or
// PERMANENT_CHANNEL_FAILURE so callers can decide whether to retry.
func (c *Client) Send(ctx context.Context, msg Message) (*Receipt, error) {
	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(c.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := c.sender.SendWithContext(ctx, email)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTransientChannel, err, "mail send timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransientChannel, err, "mail transport unreachable")
	}
	if resp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeTransientChannel, "mail transport returned no response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		receipt := &Receipt{
			MessageID:  headerValue(resp.Headers, messageIDHeader),
			StatusCode: resp.StatusCode,
		}
		if c.logg != nil {
			c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
				"status_code": resp.StatusCode,
				"message_id":  receipt.MessageID,
			}), "sendgrid accepted message")
		}
		return receipt, nil
	}

	reason := providerMessage(resp.Body)
	if reason == "" {
		reason = fmt.Sprintf("sendgrid responded %d", resp.StatusCode)
	}
	return nil, pkgerrors.New(codeForStatus(resp.StatusCode), reason).
		WithDetails(map[string]any{"status_code": resp.StatusCode})
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusRequestEntityTooLarge:
		return pkgerrors.CodePermanentChannel
	default:
		return pkgerrors.CodeTransientChannel
	}
}

func headerValue(headers map[string][]string, key string) string {
	for k, values := range headers {
		if strings.EqualFold(k, key) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// providerMessage pulls the first error message out of a SendGrid error body.
func providerMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return body
	}
	for _, e := range payload.Errors {
		if msg := strings.TrimSpace(e.Message); msg != "" {
			return msg
		}
	}
	return ""
}
