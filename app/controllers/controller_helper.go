package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

var validate = validator.New()

// respondError maps service errors onto the JSON error shape.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case fees.IsValidation(err):
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", err.Error())
	case fees.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, "not_found", err.Error())
	case fees.IsInvalidState(err):
		return errorJSON(c, fiber.StatusConflict, "invalid_state", err.Error())
	default:
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Internal server error")
	}
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "validation_error", message)
}

// bindJSON parses and validates a request body. An empty body is allowed
// for requests whose fields are all optional. The returned error is meant
// for the client.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return errors.New("Invalid request body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return errors.New(describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

// paramID reads a positive numeric path parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseDate reads a YYYY-MM-DD value; empty yields the zero time.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, value, time.Local)
}

// parseTimestamp accepts RFC3339 or YYYY-MM-DD.
func parseTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// pageParams reads offset and limit query parameters with sane bounds.
func pageParams(c *fiber.Ctx) (int, int) {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit
}
