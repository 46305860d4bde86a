package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/usercontext"
)

// FeeApplicationController serves member and admin fee application requests
type FeeApplicationController struct {
	fees *fees.Service
}

func NewFeeApplicationController(svc *fees.Service) *FeeApplicationController {
	return &FeeApplicationController{fees: svc}
}

// HandleListMyApplications lists the caller's applications, newest due first
func (ac *FeeApplicationController) HandleListMyApplications(c *fiber.Ctx) error {
	offset, limit := pageParams(c)
	apps, err := ac.fees.ListFeeApplications(c.UserContext(), usercontext.GetMemberID(c), repository.FeeApplicationFilter{
		Status: c.Query("status"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": apps, "offset": offset, "limit": limit})
}

// HandleGetMyApplication returns one of the caller's applications
func (ac *FeeApplicationController) HandleGetMyApplication(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee application id")
	}
	app, err := ac.fees.GetFeeApplication(c.UserContext(), memberActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// HandlePayMyApplication records a payment made by the caller
func (ac *FeeApplicationController) HandlePayMyApplication(c *fiber.Ctx) error {
	return ac.recordPayment(c, memberActor(c))
}

// HandleAdminRecordPayment records a payment on behalf of any member
func (ac *FeeApplicationController) HandleAdminRecordPayment(c *fiber.Ctx) error {
	return ac.recordPayment(c, fees.Actor{MemberID: usercontext.GetMemberID(c), Admin: true})
}

func (ac *FeeApplicationController) recordPayment(c *fiber.Ctx, actor fees.Actor) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee application id")
	}
	var req PaymentRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	paidAt, err := parseTimestamp(req.PaidAt)
	if err != nil {
		return badRequest(c, "paid_at must be RFC3339 or YYYY-MM-DD")
	}

	app, err := ac.fees.RecordPayment(c.UserContext(), actor, id, fees.PaymentDetails{
		PaidAt:    paidAt,
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// HandleCancelApplication cancels an unpaid application
func (ac *FeeApplicationController) HandleCancelApplication(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee application id")
	}
	var req CancelRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	app, err := ac.fees.CancelFeeApplication(c.UserContext(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// memberActor scopes /me requests to the caller, even for admins.
func memberActor(c *fiber.Ctx) fees.Actor {
	return fees.Actor{MemberID: usercontext.GetMemberID(c)}
}
