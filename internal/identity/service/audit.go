package service

import (
	"context"

	"smartid/internal/identity/models"
	"smartid/pkg/attrs"
	"smartid/pkg/domain"
	audit "smartid/pkg/platform/audit"
	"smartid/pkg/requestcontext"
)

// logAudit writes the audit log line and emits the audit event. Inside a
// store's Execute it is staged with txcontext.AfterCommit, so a store that
// retries emits only for the attempt that commits.
func (s *Service) logAudit(ctx context.Context, action audit.Action, height domain.Height, status models.Status, attributes ...any) error {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit", "height", uint64(height))
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		AggregateType: audit.AggregateIdentity,
		AggregateID:   attrs.ExtractString(attributes, "identity_id"),
		Action:        action,
		Status:        uint8(status),
		Actor:         domain.AccountID(attrs.ExtractString(attributes, "caller")),
		Subject:       attrs.ExtractString(attributes, "subject"),
		Height:        height,
		RequestID:     requestID,
	})
}
