// Package notify sends best-effort applicant notifications over SES
// and SNS. Delivery failure is logged and never blocks or rolls back
// the workflow mutation that triggered it.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"seva-portal/internal/common/config"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/models"
)

// EmailSender is the narrow SES surface the service uses.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the narrow SNS surface the service uses.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Service struct {
	email  EmailSender
	sms    SMSSender
	cfg    config.NotificationConfig
	logger logger.Logger
}

// NewService creates the notifier. Either sender may be nil; the
// matching channel is then silently skipped.
func NewService(email EmailSender, sms SMSSender, cfg config.NotificationConfig, log logger.Logger) *Service {
	return &Service{
		email:  email,
		sms:    sms,
		cfg:    cfg,
		logger: log.WithFields(logger.Fields{"service": "notify"}),
	}
}

// ApplicationStatusChanged texts the applicant about a terminal status
// change.
func (s *Service) ApplicationStatusChanged(ctx context.Context, app *models.Application) {
	if s.sms == nil || !s.cfg.AWS.SNS.Enabled || app.Mobile == "" {
		return
	}

	message := fmt.Sprintf("Your application %s (%s) is now %s.",
		app.ApplicationNo, app.ServiceName, statusLabel(app.Status))

	_, err := s.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber(s.cfg.AWS.SNS.SMSCountryCode, app.Mobile)),
		Message:     aws.String(message),
	})
	if err != nil {
		s.logger.Warn("sms notification failed", logger.Fields{
			"applicationNo": app.ApplicationNo,
			"error":         err,
		})
		return
	}
	s.logger.Info("sms notification sent", logger.Fields{
		"applicationNo": app.ApplicationNo,
		"status":        string(app.Status),
	})
}

// OperatorApproved emails an operator that their account is active.
func (s *Service) OperatorApproved(ctx context.Context, email, fullName string) {
	if s.email == nil || !s.cfg.AWS.SES.Enabled || email == "" {
		return
	}
	_, err := s.email.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.cfg.AWS.SES.FromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("Your operator account has been approved")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(fmt.Sprintf(
					"Hello %s,\n\nYour operator account is now active. You can sign in and start accepting applications.\n", fullName))},
			},
		},
	})
	if err != nil {
		s.logger.Warn("approval email failed", logger.Fields{
			"email": email,
			"error": err,
		})
	}
}

func statusLabel(status models.ApplicationStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

func phoneNumber(countryCode, mobile string) string {
	mobile = strings.TrimSpace(mobile)
	if strings.HasPrefix(mobile, "+") || countryCode == "" {
		return mobile
	}
	return countryCode + mobile
}
