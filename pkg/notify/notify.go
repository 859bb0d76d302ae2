package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/amberpower/controller/pkg/alarm"
	"github.com/amberpower/controller/pkg/config"
	"github.com/sirupsen/logrus"
)

// Notifier is the narrow one-way alerting surface the scheduling core
// calls through. Implementations must tolerate being called with email
// disabled.
type Notifier interface {
	SendEmail(subject, body string) error
}

type Mailer struct {
	cfg    *config.Email
	alarms *alarm.ActiveAlarms

	// send is swapped out by tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg *config.Email) *Mailer {
	return &Mailer{
		cfg:    cfg,
		alarms: &alarm.ActiveAlarms{},
		send:   smtp.SendMail,
	}
}

// SendEmail delivers a notification email. Repeats of a subject already
// sent this cycle are dropped. Disabled or incomplete SMTP configuration
// is not an error.
func (m *Mailer) SendEmail(subject, body string) error {
	if !m.cfg.EnableEmail {
		return nil
	}
	if m.cfg.SMTPServer == "" || m.cfg.SendEmailsTo == "" {
		logrus.Debugf("SMTP settings not fully configured, skipping email %q", subject)
		return nil
	}

	if m.cfg.SubjectPrefix != "" {
		subject = m.cfg.SubjectPrefix + " " + subject
	}

	if !m.alarms.Add(subject) {
		logrus.Debugf("already sent email %q this cycle", subject)
		return nil
	}

	from := m.cfg.SMTPUsername
	to := strings.Split(m.cfg.SendEmailsTo, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		from, m.cfg.SendEmailsTo, subject, body))

	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPServer)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPServer, m.cfg.SMTPPort)
	err := m.send(addr, auth, from, to, msg)
	if err != nil {
		return fmt.Errorf("error sending email %q: %w", subject, err)
	}
	logrus.Debugf("sent email %q to %s", subject, m.cfg.SendEmailsTo)
	return nil
}

// Discard is a Notifier that drops everything. Used in tests and when no
// alerting is configured.
type Discard struct{}

func (Discard) SendEmail(subject, body string) error { return nil }
