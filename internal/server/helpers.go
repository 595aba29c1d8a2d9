package server

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bbs/internal/middleware"
	"bbs/internal/models"

	"github.com/gofiber/fiber/v2"
)

const flashCookie = "bbs_flash"

// parseNum reads the post number from the query string or form body as a positive integer.
func parseNum(c *fiber.Ctx) (uint, error) {
	raw := strings.TrimSpace(c.FormValue("num"))
	num, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || num == 0 {
		return 0, models.NewBadRequestError("Invalid post number")
	}
	return uint(num), nil
}

// parsePage reads the page parameter, falling back to 1 for anything missing or below 1.
func parsePage(c *fiber.Ctx) int {
	page, err := strconv.Atoi(strings.TrimSpace(c.FormValue("page")))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseCriteria reads schType and kwd. The keyword is decoded exactly once by the
// query or form parser, so a keyword that went through NavigationQuery comes back unchanged.
func parseCriteria(c *fiber.Ctx) models.SearchCriteria {
	return models.NewSearchCriteria(c.FormValue("schType"), c.FormValue("kwd"))
}

func setFlash(c *fiber.Ctx, message string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// popFlash returns the pending flash message, if any, and clears it.
func popFlash(c *fiber.Ctx) string {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return ""
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	message, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return message
}

// recordFailure logs and counts a failed write whose response stays a redirect,
// and leaves a flash message for the next page.
func recordFailure(c *fiber.Ctx, operation string, err error) {
	middleware.MutationFailures.WithLabelValues(operation).Inc()

	level := slog.LevelError
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeNotFound, models.CodeBadRequest, models.CodeRateLimited:
		level = slog.LevelWarn
	}
	middleware.Logger.Log(c.UserContext(), level, "board mutation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)

	var message string
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeRateLimited:
		message = models.UserMessage(err)
	case models.CodeNotFound:
		message = "The post no longer exists."
	default:
		message = "Could not " + operation + " the post. Please try again."
	}
	setFlash(c, message)
}
