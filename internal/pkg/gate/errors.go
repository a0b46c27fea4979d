package gate

import (
	"errors"

	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
)

var (
	// ErrAlreadyCompleted means the unit was generated or its token consumed.
	// Callers should treat it as an idempotent success.
	ErrAlreadyCompleted = errors.New("gate: already completed")

	// ErrInProgress means another attempt currently holds the funding lease.
	ErrInProgress = errors.New("gate: generation in progress")

	// ErrPaymentRequired means a retail unit has not been paid for yet.
	ErrPaymentRequired = errors.New("gate: payment required")

	// ErrPipelineFailed means funding succeeded but the document could not be produced.
	ErrPipelineFailed = errors.New("gate: document pipeline failed")

	// ErrNoAccount means a credit-funded unit has no owning account.
	ErrNoAccount = errors.New("gate: credit funding requires an account")

	ErrInsufficientCredit = ledger.ErrInsufficientCredit
	ErrNotFound           = ledger.ErrNotFound
	ErrContended          = ledger.ErrContended
)
