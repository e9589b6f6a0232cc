package scheduler

import (
	"context"
	"time"

	"github.com/Dan9191/microloan/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// OutstandingSource lists unpaid loans and formats amounts for display
type OutstandingSource interface {
	Outstanding(ctx context.Context) ([]models.OutstandingLoan, error)
	FormatAmount(amount uint64) string
}

// DigestMailer delivers the outstanding-repayment digest
type DigestMailer interface {
	SendRepaymentDigest(to string, loans []models.OutstandingLoan, format func(uint64) string) error
}

// DigestJob reports loans that are not fully repaid
type DigestJob struct {
	source    OutstandingSource
	mailer    DigestMailer
	recipient string
	log       *logrus.Logger
	timeout   time.Duration
}

// NewDigestJob creates a digest job; a nil mailer only logs the summary
func NewDigestJob(source OutstandingSource, mailer DigestMailer, recipient string, log *logrus.Logger) *DigestJob {
	return &DigestJob{
		source:    source,
		mailer:    mailer,
		recipient: recipient,
		log:       log,
		timeout:   30 * time.Second,
	}
}

// Run implements cron.Job. Failures are logged and never stop the scheduler.
func (j *DigestJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	loans, err := j.source.Outstanding(ctx)
	if err != nil {
		j.log.WithError(err).Error("Failed to load outstanding loans")
		return
	}

	var slots int
	var amount uint64
	for _, l := range loans {
		slots += l.UnpaidSlots
		amount += l.UnpaidAmount
	}
	j.log.WithFields(logrus.Fields{
		"loans":        len(loans),
		"unpaid_slots": slots,
		"outstanding":  j.source.FormatAmount(amount),
	}).Info("Repayment digest")

	if j.mailer == nil || j.recipient == "" {
		return
	}
	if err := j.mailer.SendRepaymentDigest(j.recipient, loans, j.source.FormatAmount); err != nil {
		j.log.WithError(err).Warn("Repayment digest not delivered")
	}
}

// Start schedules job on spec and starts the cron runner
func Start(spec string, job cron.Job, log *logrus.Logger) (*cron.Cron, error) {
	logger := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddJob(spec, job); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
