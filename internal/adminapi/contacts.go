package adminapi

import (
	"net/http"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/webserver"
	"go.uber.org/zap"
)

func registerContactRoutes() {
	webserver.ApiGET("/sessions/:id/contacts", listContacts)
	webserver.ApiPOST("/sessions/:id/contacts", saveContact)
	webserver.ApiPOST("/sessions/:id/contacts/import", importContacts)
}

func listContacts(c echo.Context) error {
	contacts, err := application.Repo().GetContacts(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query contacts", err.Error())
	}
	return ok(c, contacts)
}

func saveContact(c echo.Context) error {
	var payload struct {
		Number string `json:"number"`
		Name   string `json:"name"`
		Tags   string `json:"tags"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	payload.Number = strings.TrimSpace(payload.Number)
	if payload.Number == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "number is required", nil)
	}

	contact := &domain.Contact{
		SessionId: c.Param("id"),
		Number:    payload.Number,
		Name:      strings.TrimSpace(payload.Name),
		Tags:      payload.Tags,
	}
	if err := application.Repo().SaveContact(c.Request().Context(), contact); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save contact", err.Error())
	}
	return ok(c, contact)
}

// importContacts bulk-loads contacts from an uploaded CSV file with a
// number,name,tags header. Rows without a number are skipped.
func importContacts(c echo.Context) error {
	sessionID := c.Param("id")

	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FILE", "file form field is required", err.Error())
	}
	src, err := file.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to open uploaded file", err.Error())
	}
	defer src.Close()

	var rows []*domain.Contact
	if err := gocsv.Unmarshal(src, &rows); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CSV", "Unable to parse CSV", err.Error())
	}

	imported, skipped := 0, 0
	for _, row := range rows {
		row.Number = strings.TrimSpace(row.Number)
		if row.Number == "" {
			skipped++
			continue
		}
		row.SessionId = sessionID
		if err := application.Repo().SaveContact(c.Request().Context(), row); err != nil {
			zap.L().Warn("adminapi: contact import row failed",
				zap.String("number", row.Number), zap.Error(err))
			skipped++
			continue
		}
		imported++
	}
	zap.L().Info("adminapi: contacts imported",
		zap.String("session_id", sessionID),
		zap.Int("imported", imported),
		zap.Int("skipped", skipped))
	return ok(c, map[string]interface{}{"imported": imported, "skipped": skipped})
}
