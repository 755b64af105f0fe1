// Email notification channel. A small worker pool drains a channel of
// outgoing mails so submission handling never blocks on SMTP.
package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"gopkg.in/gomail.v2"
	"github.com/planealo/planforms/internal/planforms/config"
	"github.com/planealo/planforms/internal/planforms/dto"
)

const emailQueueSize = 64

type EmailService struct {
	d   *gomail.Dialer
	cfg *config.Config

	// mu guards disabled against a Send racing Stop's channel close.
	mu       sync.Mutex
	disabled bool

	emailChan chan mail
	eg        errgroup.Group
}

type mail struct {
	To          string
	Subject     string
	Content     string
	TextContent string
}

func NewEmailService(cfg *config.Config) *EmailService {
	es := &EmailService{
		d:         gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword),
		cfg:       cfg,
		disabled:  cfg.EmailHost == "",
		emailChan: make(chan mail, emailQueueSize),
	}
	if es.disabled {
		slog.Warn("Email notifications disabled, no EMAIL_HOST configured")
		return es
	}

	for i := 0; i < cfg.EmailWorkers; i++ {
		es.eg.Go(func() error {
			return es.worker(es.emailChan)
		})
	}

	return es
}

func (es *EmailService) Stop() {
	es.mu.Lock()
	if es.disabled {
		es.mu.Unlock()
		return
	}
	slog.Info("Closing email workers")
	es.disabled = true
	close(es.emailChan)
	es.mu.Unlock()

	if err := es.eg.Wait(); err != nil {
		slog.Error("Email worker fail", "err", err)
	}

	slog.Info("Email workers successfully stopped")
}

func (es *EmailService) sendEmail(e mail) error {
	m := gomail.NewMessage()
	m.SetHeader("From", es.cfg.EmailFrom)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.TextContent)
	if e.Content != "" {
		m.AddAlternative("text/html", e.Content)
	}

	return es.d.DialAndSend(m)
}

// Send queues a mail without blocking the caller. A saturated queue drops the
// mail with a warning.
func (es *EmailService) Send(e mail) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.disabled {
		return fmt.Errorf("email service stopped")
	}
	select {
	case es.emailChan <- e:
		return nil
	default:
		slog.Warn("Email queue full, dropping mail", "to", e.To)
		return fmt.Errorf("email queue full")
	}
}

func (es *EmailService) worker(emailChan <-chan mail) error {
	for e := range emailChan {
		if err := es.sendEmail(e); err != nil {
			slog.Error("Email send fail", "to", e.To, "err", err)
		}
	}
	return nil
}

const submissionReceivedTmpl = `<p>Nueva respuesta para el formulario <strong>{{.FormName}}</strong> (#{{.SeqId}}).</p><ol>{{range .Rows}}<li><strong>{{.Name}}</strong>: {{.Value}}</li>{{end}}</ol>`

type submissionRow struct {
	Name  string
	Value string
}

// SubmissionReceived queues a new-response notification for every recipient.
// The attempted count is reported back for the response document.
func (es *EmailService) SubmissionReceived(recipients []string, form *dto.Form, sub *dto.Submission, rows [][2]string) int {
	if es.disabled || len(recipients) == 0 {
		return 0
	}

	t, err := template.New("SubmissionReceived").Parse(submissionReceivedTmpl)
	if err != nil {
		slog.Error("Parse submission email template", "err", err)
		return 0
	}

	tmplRows := make([]submissionRow, 0, len(rows))
	var text bytes.Buffer
	for _, r := range rows {
		tmplRows = append(tmplRows, submissionRow{Name: r[0], Value: r[1]})
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, struct {
		FormName string
		SeqId    int
		Rows     []submissionRow
	}{form.Name, sub.SeqId, tmplRows}); err != nil {
		slog.Error("Render submission email", "err", err)
		return 0
	}

	attempted := 0
	for _, to := range recipients {
		if err := es.Send(mail{
			To:          to,
			Subject:     fmt.Sprintf("Nueva respuesta: %s #%d", form.Name, sub.SeqId),
			Content:     buf.String(),
			TextContent: text.String(),
		}); err != nil {
			slog.Error("Queue submission email", "to", to, "err", err)
			continue
		}
		attempted++
	}
	return attempted
}
