package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/session"
	"github.com/talkincode/waconsole/internal/webserver"
	"github.com/talkincode/waconsole/internal/whatsapp"
	"go.uber.org/zap"
)

func registerSessionRoutes() {
	webserver.ApiGET("/sessions", listSessions)
	webserver.ApiPOST("/sessions", createSession)
	webserver.ApiGET("/sessions/:id", getSession)
	webserver.ApiGET("/sessions/:id/qr", getSessionQR)
	webserver.ApiPOST("/sessions/:id/reconnect", reconnectSession)
	webserver.ApiDELETE("/sessions/:id", removeSession)
}

func listSessions(c echo.Context) error {
	return ok(c, application.Registry().List())
}

func createSession(c echo.Context) error {
	var payload struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name is required", nil)
	}

	svc := whatsapp.Get()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp service not initialized", nil)
	}
	id, err := svc.CreateSession(c.Request().Context(), payload.Phone, payload.Name)
	if err != nil {
		zap.L().Warn("adminapi: create session failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create session", err.Error())
	}
	oprLog(c, "create_session", id)
	return ok(c, map[string]interface{}{"session_id": id})
}

func getSession(c echo.Context) error {
	s, err := application.Registry().Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "LOOKUP_FAILED", "Failed to query session", err.Error())
	}
	return ok(c, s)
}

// getSessionQR returns the pending pairing QR payload. Frontends render the
// QR client-side from the string value.
func getSessionQR(c echo.Context) error {
	s, err := application.Registry().Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "LOOKUP_FAILED", "Failed to query session", err.Error())
	}
	return ok(c, map[string]interface{}{
		"code":   s.QRPayload,
		"has_qr": s.QRPayload != "",
		"state":  s.State,
	})
}

func reconnectSession(c echo.Context) error {
	svc := whatsapp.Get()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp service not initialized", nil)
	}
	err := svc.ReconnectSession(c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	case errors.Is(err, session.ErrInvalidTransition):
		return fail(c, http.StatusConflict, "NOT_DISCONNECTED", "Only disconnected sessions can reconnect", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "RECONNECT_FAILED", "Failed to reconnect session", err.Error())
	}
	return ok(c, map[string]interface{}{"started": true})
}

func removeSession(c echo.Context) error {
	svc := whatsapp.Get()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp service not initialized", nil)
	}
	if err := svc.RemoveSession(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, http.StatusInternalServerError, "REMOVE_FAILED", "Failed to remove session", err.Error())
	}
	oprLog(c, "remove_session", c.Param("id"))
	return ok(c, map[string]interface{}{"removed": true})
}
