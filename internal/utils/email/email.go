package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/microloan/internal/config"
	"github.com/Dan9191/microloan/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send:   (*email.Email).Send,
	}
}

// BuildRepaymentDigest composes the outstanding-repayment digest
func (s *Sender) BuildRepaymentDigest(to string, loans []models.OutstandingLoan, format func(uint64) string, at time.Time) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Outstanding repayments: %d loan(s) as of %s", len(loans), at.Format("2006-01-02"))

	var body strings.Builder
	body.WriteString("Hello,\n\n")
	if len(loans) == 0 {
		body.WriteString("Every loan has been fully repaid.\n")
	} else {
		var total uint64
		for _, l := range loans {
			total += l.UnpaidAmount
			fmt.Fprintf(&body, "Loan #%d (lender %s): %d unpaid slot(s), %s outstanding\n",
				l.LoanID, l.Lender, l.UnpaidSlots, format(l.UnpaidAmount))
			for _, d := range l.Debtors {
				fmt.Fprintf(&body, "  - %s\n", d)
			}
		}
		fmt.Fprintf(&body, "\nTotal outstanding: %s\n", format(total))
	}
	body.WriteString("\nBest regards,\nMicroloan Service")
	e.Text = []byte(body.String())
	return e
}

// SendRepaymentDigest mails the outstanding-repayment digest
func (s *Sender) SendRepaymentDigest(to string, loans []models.OutstandingLoan, format func(uint64) string) error {
	e := s.BuildRepaymentDigest(to, loans, format, time.Now())

	// Send email
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send repayment digest to %s: %v", to, err)
		return fmt.Errorf("failed to send repayment digest: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
