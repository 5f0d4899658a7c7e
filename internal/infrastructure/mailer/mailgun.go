package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

const sendTimeout = 10 * time.Second

// Config holds the Mailgun account and invitation settings.
type Config struct {
	Domain   string
	APIKey   string
	Sender   string
	LoginURL string
	APIBase  string // optional, e.g. mg.APIBaseEU
}

// sender is the subset of the Mailgun client used here.
type sender interface {
	NewMessage(from, subject, text string, to ...string) *mg.Message
	Send(ctx context.Context, m *mg.Message) (string, string, error)
}

// InvitationSender emails new users a link to the sign-in page. Only
// user.created events produce mail.
type InvitationSender struct {
	client   sender
	from     string
	loginURL string
}

func NewInvitationSender(cfg Config) *InvitationSender {
	client := mg.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		client.SetAPIBase(cfg.APIBase)
	}
	return &InvitationSender{client: client, from: cfg.Sender, loginURL: cfg.LoginURL}
}

var _ ports.EventSink = (*InvitationSender)(nil)

func (s *InvitationSender) Name() string { return "mailgun" }

func (s *InvitationSender) Handle(ctx context.Context, event domain.UserEvent) error {
	if event.Type != domain.EventUserCreated {
		return nil
	}

	text, err := renderInvitation(event, s.loginURL)
	if err != nil {
		return err
	}
	msg := s.client.NewMessage(s.from, "You have been invited", text, event.Email)

	c, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, _, err := s.client.Send(c, msg); err != nil {
		return fmt.Errorf("send invitation to %s: %w", event.Email, err)
	}
	return nil
}

var invitationTemplate = template.Must(template.New("invitation").Parse(
	`Hello{{if .FirstName}} {{.FirstName}}{{end}},

An account has been created for you ({{.Email}}){{if .Role}} with the {{.Role}} role{{end}}.
{{if .LoginURL}}
Sign in and set your password at {{.LoginURL}}
{{end}}`))

func renderInvitation(event domain.UserEvent, loginURL string) (string, error) {
	var buf bytes.Buffer
	err := invitationTemplate.Execute(&buf, struct {
		FirstName string
		Email     string
		Role      string
		LoginURL  string
	}{event.FirstName, event.Email, event.Role, loginURL})
	if err != nil {
		return "", fmt.Errorf("render invitation: %w", err)
	}
	return buf.String(), nil
}
