//go:build test
// +build test

package jobqueue

import (
	"time"
)

// TestJobFactory creates test jobs for different types
func TestJobFactory() map[JobType]*Job {
	now := time.Now()

	return map[JobType]*Job{
		JobTypeAppealReady: {
			ID:     "test-appeal-ready-job",
			Type:   JobTypeAppealReady,
			Status: JobStatusPending,
			Payload: AppealReadyJobPayload{
				WorkUnitUUID: "test-work-unit-uuid",
				Email:        "biller@example.com",
				ClaimNumber:  "CLM-1",
			}.ToMap(),
			CreatedAt:  now,
			UpdatedAt:  now,
			RetryCount: 0,
			MaxRetries: 3,
		},
	}
}
