package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/prom"
)

var (
	ErrInvalidSignature = errors.New("callback signature verification failed")
	ErrUnknownStatus    = errors.New("unknown callback status")
)

// StatusCallback is the vendor's asynchronous delivery update, received on
// the status webhook after a send was accepted.
type StatusCallback struct {
	ExternalID string
	Status     string
	ErrorCode  string
	Params     map[string]string // raw POST params, for signature verification
	Signature  string
	URL        string
}

// CallbackService applies vendor status callbacks to message records.
type CallbackService struct {
	messages  MessageRepository
	authToken string
}

func NewCallbackService(messages MessageRepository, authToken string) *CallbackService {
	return &CallbackService{messages: messages, authToken: authToken}
}

// Apply verifies and applies one status callback. Stale callbacks (arriving
// after a later status) are dropped silently; transitions never move
// backwards.
func (s *CallbackService) Apply(ctx context.Context, cb StatusCallback) (*model.Message, error) {
	if !gateway.VerifyCallbackSignature(s.authToken, cb.URL, cb.Params, cb.Signature) {
		logger.Warn("Rejected status callback with bad signature", "external_id", cb.ExternalID)
		return nil, ErrInvalidSignature
	}

	next, err := mapVendorStatus(cb.Status)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.GetByExternalID(ctx, cb.ExternalID)
	if err != nil {
		return nil, err
	}

	errText := ""
	if next == model.MessageStatusFailed {
		errText = fmt.Sprintf("[%s] vendor callback: %s", gateway.ClassifyError(cb.ErrorCode), cb.ErrorCode)
	}

	updated, err := s.messages.UpdateStatus(ctx, msg.ID, next, errText)
	if errors.Is(err, repository.ErrInvalidTransition) {
		logger.Debug("Dropped stale status callback",
			"external_id", cb.ExternalID, "current", string(msg.Status), "callback", cb.Status)
		return msg, nil
	}
	if err != nil {
		return nil, err
	}

	if next == model.MessageStatusDelivered && updated.SentAt != nil {
		prom.AddMessageDeliveryDuration(time.Since(*updated.SentAt).Seconds(), string(updated.Channel))
	}

	logger.Info("Status callback applied",
		"message_id", updated.ID, "external_id", cb.ExternalID, "status", string(next))
	return updated, nil
}

func mapVendorStatus(vendor string) (model.MessageStatus, error) {
	switch strings.ToLower(vendor) {
	case "queued", "accepted":
		return model.MessageStatusQueued, nil
	case "sent":
		return model.MessageStatusSent, nil
	case "delivered":
		return model.MessageStatusDelivered, nil
	case "read":
		return model.MessageStatusRead, nil
	case "failed", "undelivered":
		return model.MessageStatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, vendor)
	}
}
