package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
)

// InvitationEmail is the task payload for an invitation notification.
type InvitationEmail struct {
	To          string    `json:"to"`
	EntityKind  string    `json:"entity_kind"`
	EntityName  string    `json:"entity_name"`
	InviterName string    `json:"inviter_name"`
	Role        string    `json:"role"`
	Message     string    `json:"message,omitempty"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type EmailService struct {
	cfg *config.EmailConfig
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendInvitation delivers an invitation notification. Returns nil when the
// mailer is disabled.
func (s *EmailService) SendInvitation(m *InvitationEmail) error {
	if !s.cfg.Enabled || s.cfg.Host == "" {
		return nil
	}
	if m.To == "" {
		return nil
	}

	subject := fmt.Sprintf("[TeamSync] %s invited you to join %s", m.InviterName, m.EntityName)
	body := s.buildInvitationBody(m)

	return s.sendEmail([]string{m.To}, subject, body)
}

func (s *EmailService) buildInvitationBody(m *InvitationEmail) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>You've been invited to a %s</h2>", m.EntityKind))
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")

	kindLabel := m.EntityKind
	if kindLabel != "" {
		kindLabel = strings.ToUpper(kindLabel[:1]) + kindLabel[1:]
	}

	rows := []struct{ label, value string }{
		{kindLabel, m.EntityName},
		{"Invited by", m.InviterName},
		{"Role", m.Role},
		{"Expires", m.ExpiresAt.Format("Jan 2, 2006")},
	}

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>", r.label, r.value))
	}
	sb.WriteString("</table>")

	if m.Message != "" {
		sb.WriteString("<h3>Message</h3>")
		sb.WriteString(fmt.Sprintf("<div style=\"background: #f9f9f9; padding: 16px; border-radius: 4px; white-space: pre-wrap;\">%s</div>", m.Message))
	}

	if s.cfg.BaseURL != "" {
		link := fmt.Sprintf("%s/invitations/%s", strings.TrimRight(s.cfg.BaseURL, "/"), m.Token)
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Accept or decline this invitation</a></p>", link))
	}

	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Powered by TeamSync</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) sendEmail(to []string, subject, body string) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	headers := make(map[string]string)
	headers["From"] = from
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	if s.cfg.UseTLS {
		err = s.sendEmailTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Infof("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent invitation notification to %v", to)
	return nil
}

func (s *EmailService) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	_, err = w.Write([]byte(message))
	if err != nil {
		return err
	}

	return w.Close()
}
