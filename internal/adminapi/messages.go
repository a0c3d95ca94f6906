package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/webserver"
	"github.com/talkincode/waconsole/internal/whatsapp"
	"go.uber.org/zap"
)

func registerMessageRoutes() {
	webserver.ApiGET("/sessions/:id/messages", listMessages)
	webserver.ApiPOST("/sessions/:id/send", postSendMessage)
}

// listMessages returns message history for one session, optionally filtered
// by ?contact= and ?since= (any common timestamp format).
func listMessages(c echo.Context) error {
	sessionID := c.Param("id")
	contact := strings.TrimSpace(c.QueryParam("contact"))

	var since time.Time
	if raw := strings.TrimSpace(c.QueryParam("since")); raw != "" {
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_SINCE", "Unable to parse since parameter", err.Error())
		}
		since = t
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	msgs, err := application.Repo().GetMessages(c.Request().Context(), sessionID, contact, since, limit)
	if err != nil {
		zap.L().Warn("adminapi: list messages failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query messages", err.Error())
	}
	return ok(c, msgs)
}

// postSendMessage sends a single text message from the session.
// Body JSON: { "to": "62812xxxx", "body": "hello" }
func postSendMessage(c echo.Context) error {
	sessionID := c.Param("id")
	var payload struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.To == "" || payload.Body == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "to and body are required", nil)
	}

	svc := whatsapp.Get()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp service not initialized", nil)
	}
	err := svc.SendText(c.Request().Context(), sessionID, payload.To, payload.Body)
	switch {
	case errors.Is(err, bulk.ErrSessionNotReady):
		return fail(c, http.StatusConflict, "SESSION_NOT_READY", "Session is not ready to send", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SEND_FAILED", "Failed to send message", err.Error())
	}
	return ok(c, map[string]interface{}{"sent": true})
}
