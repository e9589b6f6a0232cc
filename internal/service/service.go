package service

import (
	"context"
	"time"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/config"
	"github.com/Dan9191/microloan/internal/repository"
	"github.com/sirupsen/logrus"
)

// Service handles business logic
type Service struct {
	store  repository.Store
	log    *logrus.Logger
	config *config.Config
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the clock used for loan and repayment timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService initializes a new service
func NewService(store repository.Store, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		log:    log,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time on the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// ServiceAccount is the ledger account loans and repayments are pulled through
func (s *Service) ServiceAccount() string {
	return s.config.ServiceAccount
}

// Ping checks the backing store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// logFailure logs caller-attributable rejections at warn and everything else at error
func (s *Service) logFailure(err error, fields logrus.Fields, msg string) {
	entry := s.log.WithFields(fields).WithError(err)
	if isRejection(err) {
		entry.Warn(msg)
		return
	}
	entry.Error(msg)
}

func isRejection(err error) bool {
	return apperrors.IsNotFound(err) ||
		apperrors.IsAuthorization(err) ||
		apperrors.IsState(err) ||
		apperrors.IsAmount(err) ||
		apperrors.IsFunds(err) ||
		apperrors.IsRetryable(err) ||
		apperrors.Code(err) == apperrors.CodeInvalidInput
}
