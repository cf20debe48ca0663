package services

import (
	"context"
	"errors"
	"fmt"

	"mileage/internal/core"
	"mileage/internal/log"
	"mileage/internal/sheets"
)

// Archive stores submitted claim batches.
type Archive interface {
	CreateSubmission(ctx context.Context, s core.Submission) (int64, error)
	Close() error
}

// Publisher announces archived submissions to the worker.
type Publisher interface {
	PublishClaimsSubmitted(ctx context.Context, submissionID int64, reference string) error
	Close() error
}

var _ sheets.ClaimSubmitter = (*ClaimService)(nil)

// ClaimService archives a submission locally and then publishes a sync
// message for the worker.
type ClaimService struct {
	archive   Archive
	publisher Publisher
	logger    *log.Logger
}

// NewClaimService accepts a nil publisher; submissions are then archived
// only.
func NewClaimService(archive Archive, publisher Publisher, logger *log.Logger) *ClaimService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ClaimService{
		archive:   archive,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentBackend),
	}
}

// Submit archives the submission and returns its reference. A failed
// publish is logged; the archive row stays pending and the worker's
// startup sync picks it up.
func (s *ClaimService) Submit(ctx context.Context, sub core.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	if s.archive == nil {
		return "", errors.New("claim archive not configured")
	}

	id, err := s.archive.CreateSubmission(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("archive submission: %w", err)
	}

	if err := s.publish(ctx, id, sub.Reference); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish claims submitted message",
			"submission_id", id,
			log.FieldSubmissionRef, sub.Reference,
			log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Claims submitted",
		"submission_id", id,
		log.FieldSubmissionRef, sub.Reference,
		log.FieldUser, sub.SubmittedBy,
		log.FieldEntryCount, sub.Summary.Count)
	return sub.Reference, nil
}

func (s *ClaimService) publish(ctx context.Context, id int64, ref string) error {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping claims submitted message",
			"submission_id", id)
		return nil
	}
	return s.publisher.PublishClaimsSubmitted(ctx, id, ref)
}

// Close closes both the archive and the publisher.
func (s *ClaimService) Close() error {
	var errs []error

	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close claim service: %w", err)
	}
	return nil
}
