package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/mail"
)

// NotifyAppealReady enqueues the appeal-ready email for a generated work unit.
func (q *Queue) NotifyAppealReady(p AppealReadyJobPayload) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := q.EnqueueJob(JobTypeAppealReady, p.ToMap())
	return err
}

func (q *Queue) processAppealReadyJob(ctx context.Context, job *Job) error {
	payload, err := AppealReadyJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	sender := q.sender()
	if sender == nil {
		return mail.ErrNotConfigured
	}

	log.Infof("[JobQueue] Sending appeal-ready email for work unit %s", payload.WorkUnitUUID)
	return mail.SendAppealReady(ctx, sender, payload.Email, mail.AppealReady{
		ClaimNumber: payload.ClaimNumber,
		PayerName:   payload.PayerName,
		DocumentURL: payload.DocumentURL,
	})
}
