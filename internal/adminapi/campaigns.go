package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/webserver"
	"go.uber.org/zap"
)

func registerCampaignRoutes() {
	webserver.ApiGET("/campaigns", listCampaigns)
	webserver.ApiPOST("/campaigns", startCampaign)
	webserver.ApiGET("/campaigns/:id", getCampaign)
	webserver.ApiPOST("/campaigns/:id/cancel", cancelCampaign)
	webserver.ApiGET("/campaigns/:id/export", exportCampaign)
}

func dispatcher(c echo.Context) (*bulk.Dispatcher, error) {
	d := application.Dispatcher()
	if d == nil {
		return nil, fail(c, http.StatusServiceUnavailable, "BULK_NOT_INITIALIZED", "Bulk dispatcher not initialized", nil)
	}
	return d, nil
}

func listCampaigns(c echo.Context) error {
	d, errResp := dispatcher(c)
	if d == nil {
		return errResp
	}
	return ok(c, d.List())
}

// startCampaign launches a bulk send.
// Body JSON: { "session_id": "...", "min_delay_ms": 2000,
//              "jobs": [{"contact": "62812xxx", "body": "hi"}, ...] }
func startCampaign(c echo.Context) error {
	d, errResp := dispatcher(c)
	if d == nil {
		return errResp
	}

	var payload struct {
		SessionID  string          `json:"session_id"`
		MinDelayMs int             `json:"min_delay_ms"`
		Jobs       []bulk.JobInput `json:"jobs"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.SessionID == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "session_id is required", nil)
	}

	id, err := d.Start(payload.SessionID, payload.Jobs, time.Duration(payload.MinDelayMs)*time.Millisecond)
	switch {
	case errors.Is(err, bulk.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, "INVALID_CAMPAIGN", "Campaign input is invalid", err.Error())
	case errors.Is(err, bulk.ErrSessionNotReady):
		return fail(c, http.StatusConflict, "SESSION_NOT_READY", "Session is not ready to send", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "START_FAILED", "Failed to start campaign", err.Error())
	}
	oprLog(c, "start_campaign", fmt.Sprintf("campaign %d on %s (%d jobs)", id, payload.SessionID, len(payload.Jobs)))
	return ok(c, map[string]interface{}{"campaign_id": fmt.Sprintf("%d", id)})
}

func getCampaign(c echo.Context) error {
	d, errResp := dispatcher(c)
	if d == nil {
		return errResp
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID", nil)
	}
	snap, err := d.Snapshot(id)
	if errors.Is(err, bulk.ErrNotFound) {
		return fail(c, http.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "LOOKUP_FAILED", "Failed to query campaign", err.Error())
	}
	return ok(c, snap)
}

func cancelCampaign(c echo.Context) error {
	d, errResp := dispatcher(c)
	if d == nil {
		return errResp
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID", nil)
	}
	if err := d.Cancel(id); errors.Is(err, bulk.ErrNotFound) {
		return fail(c, http.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "CANCEL_FAILED", "Failed to cancel campaign", err.Error())
	}
	oprLog(c, "cancel_campaign", fmt.Sprintf("campaign %d", id))
	return ok(c, map[string]interface{}{"cancelled": true})
}

// exportCampaign streams the campaign outcome as an xlsx workbook. Live
// campaigns export the in-memory snapshot; finished ones fall back to the
// persisted rows when the process was restarted in between.
func exportCampaign(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID", nil)
	}

	type exportRow struct {
		Contact string
		Body    string
		Status  string
		Error   string
	}
	var rows []exportRow
	var sessionID string

	if d := application.Dispatcher(); d != nil {
		if snap, err := d.Snapshot(id); err == nil {
			sessionID = snap.SessionID
			for _, j := range snap.Jobs {
				rows = append(rows, exportRow{j.Contact, j.Body, string(j.Status), j.Error})
			}
		}
	}
	if rows == nil {
		logs, err := application.Repo().GetCampaignLogs(c.Request().Context(), id)
		if err != nil || len(logs) == 0 {
			return fail(c, http.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found", nil)
		}
		sessionID = logs[0].SessionId
		for _, l := range logs {
			rows = append(rows, exportRow{l.Contact, l.Body, l.Status, l.Error})
		}
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"
	headers := []string{"Contact", "Body", "Status", "Error"}
	cols := []string{"A", "B", "C", "D"}
	for i, h := range headers {
		f.SetCellValue(sheet, fmt.Sprintf("%s1", cols[i]), h)
	}
	for i, row := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), row.Contact)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), row.Body)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", i+2), row.Status)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", i+2), row.Error)
	}

	zap.L().Info("adminapi: campaign exported",
		zap.Int64("campaign_id", id),
		zap.String("session_id", sessionID),
		zap.Int("rows", len(rows)))

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="campaign_%d.xlsx"`, id))
	c.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response().Writer)
}
