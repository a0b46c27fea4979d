package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/DenialAppealPro/appealpro/app/repository"
	"github.com/DenialAppealPro/appealpro/internal/pkg/billing"
	"github.com/DenialAppealPro/appealpro/internal/pkg/gate"
	"github.com/DenialAppealPro/appealpro/internal/pkg/jobqueue"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
	"github.com/DenialAppealPro/appealpro/internal/pkg/rules"
	"github.com/DenialAppealPro/appealpro/internal/pkg/storage"
)

// Notifier enqueues follow-up work for a generated appeal.
type Notifier interface {
	NotifyAppealReady(p jobqueue.AppealReadyJobPayload) error
}

// Pinger is anything the health check can ping.
type Pinger interface {
	Ping() error
}

// PingFunc adapts a function to Pinger.
type PingFunc func() error

func (f PingFunc) Ping() error { return f() }

// Controller serves the JSON API.
type Controller struct {
	gate     *gate.Gate
	ledger   *ledger.Ledger
	billing  *billing.Service
	stripe   *billing.StripeAdapter
	store     storage.Store
	repos     *repository.Factory
	rules     *rules.Engine
	notifier  Notifier
	checks    map[string]Pinger
	publicURL string
}

// Options wires the controller's collaborators. Notifier, Checks and
// PublicBaseURL are optional.
type Options struct {
	Gate     *gate.Gate
	Ledger   *ledger.Ledger
	Billing  *billing.Service
	Stripe   *billing.StripeAdapter
	Store    storage.Store
	Repos    *repository.Factory
	Rules    *rules.Engine
	Notifier Notifier
	Checks   map[string]Pinger
	// PublicBaseURL prefixes document links in notification emails.
	PublicBaseURL string
}

func New(o Options) *Controller {
	return &Controller{
		gate:      o.Gate,
		ledger:    o.Ledger,
		billing:   o.Billing,
		stripe:    o.Stripe,
		store:     o.Store,
		repos:     o.Repos,
		rules:     o.Rules,
		notifier:  o.Notifier,
		checks:    o.Checks,
		publicURL: strings.TrimRight(o.PublicBaseURL, "/"),
	}
}

var errInvalidID = errors.New("invalid id")

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func accountIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// pagination reads ?page= and ?per_page= with sane bounds.
func pagination(c *fiber.Ctx) (page, perPage, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage = c.QueryInt("per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}
