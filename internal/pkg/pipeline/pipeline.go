package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
	"github.com/DenialAppealPro/appealpro/internal/pkg/storage"
)

const keyPrefix = "appeals"

var ErrInvalidAppeal = errors.New("pipeline: invalid appeal data")

// Pipeline renders letters and writes them to a blob store.
type Pipeline struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Pipeline {
	return &Pipeline{store: store, now: time.Now}
}

// Generate renders d and returns the object key of the stored document.
func (p *Pipeline) Generate(ctx context.Context, d AppealData) (string, error) {
	start := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()

	if d.UUID == "" || d.ClaimNumber == "" {
		return "", ErrInvalidAppeal
	}

	var buf bytes.Buffer
	if err := Letter(d).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render appeal %s: %w", d.UUID, err)
	}

	key := storage.ObjectKey(keyPrefix, d.UUID, ".html", p.now().UTC())
	if err := p.store.Put(ctx, key, &buf, "text/html; charset=utf-8"); err != nil {
		return "", fmt.Errorf("store appeal %s: %w", d.UUID, err)
	}

	log.Infof("[Pipeline] Stored appeal %s at %s", d.UUID, key)
	return key, nil
}
