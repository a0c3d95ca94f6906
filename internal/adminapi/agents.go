package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/agent"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/webserver"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func registerAgentRoutes() {
	webserver.ApiGET("/agents", listAgents)
	webserver.ApiPOST("/agents", createAgent)
	webserver.ApiGET("/agents/:id", getAgent)
	webserver.ApiPUT("/agents/:id", updateAgent)
	webserver.ApiDELETE("/agents/:id", deleteAgent)

	webserver.ApiGET("/sessions/:id/assignments", listAssignments)
	webserver.ApiPOST("/sessions/:id/assignments", createAssignment)
	webserver.ApiDELETE("/assignments/:id", deleteAssignment)
}

type agentPayload struct {
	Name   string                 `json:"name"`
	Config map[string]interface{} `json:"config"`
	Remark string                 `json:"remark"`
}

// validateAgentConfig parses the free-form config map so broken
// configurations are rejected at the boundary instead of at reply time.
func validateAgentConfig(raw map[string]interface{}) (string, error) {
	if _, err := agent.ParseConfig(raw); err != nil {
		return "", err
	}
	encoded, err := json.MarshalToString(raw)
	if err != nil {
		return "", err
	}
	return encoded, nil
}

func listAgents(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Agent{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("name LIKE ?", "%"+q+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query agents", err.Error())
	}

	var agents []domain.Agent
	if err := db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&agents).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query agents", err.Error())
	}
	return paged(c, agents, total, page, pageSize)
}

func createAgent(c echo.Context) error {
	var payload agentPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse agent parameters", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name is required", nil)
	}
	encoded, err := validateAgentConfig(payload.Config)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CONFIG", "Agent config is invalid", err.Error())
	}

	a := domain.Agent{
		Name:      payload.Name,
		Config:    encoded,
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := GetDB(c).Create(&a).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create agent", err.Error())
	}
	return ok(c, a)
}

func getAgent(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid agent ID", nil)
	}
	var a domain.Agent
	if err := GetDB(c).Where("id = ?", id).First(&a).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query agent", err.Error())
	}
	return ok(c, a)
}

func updateAgent(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid agent ID", nil)
	}
	var payload agentPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse agent parameters", err.Error())
	}

	var a domain.Agent
	if err := GetDB(c).Where("id = ?", id).First(&a).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query agent", err.Error())
	}

	if name := strings.TrimSpace(payload.Name); name != "" {
		a.Name = name
	}
	if payload.Config != nil {
		encoded, err := validateAgentConfig(payload.Config)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_CONFIG", "Agent config is invalid", err.Error())
		}
		a.Config = encoded
	}
	if payload.Remark != "" {
		a.Remark = payload.Remark
	}
	a.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&a).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update agent", err.Error())
	}
	return ok(c, a)
}

func deleteAgent(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid agent ID", nil)
	}

	var inUse int64
	GetDB(c).Model(&domain.AgentAssignment{}).Where("agent_id = ?", id).Count(&inUse)
	if inUse > 0 {
		return fail(c, http.StatusConflict, "AGENT_IN_USE", "Agent still has assignments",
			map[string]interface{}{"assignments": inUse})
	}

	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Agent{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete agent", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}

func listAssignments(c echo.Context) error {
	var rows []domain.AgentAssignment
	if err := GetDB(c).Where("session_id = ?", c.Param("id")).
		Order("contact_number ASC, priority DESC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query assignments", err.Error())
	}
	return ok(c, rows)
}

func createAssignment(c echo.Context) error {
	var payload struct {
		AgentId       int64  `json:"agent_id,string"`
		ContactNumber string `json:"contact_number"`
		Priority      int    `json:"priority"`
		Enabled       *bool  `json:"enabled"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.AgentId == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "agent_id is required", nil)
	}

	var exists int64
	GetDB(c).Model(&domain.Agent{}).Where("id = ?", payload.AgentId).Count(&exists)
	if exists == 0 {
		return fail(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent not found", nil)
	}

	enabled := true
	if payload.Enabled != nil {
		enabled = *payload.Enabled
	}
	row := domain.AgentAssignment{
		AgentId:       payload.AgentId,
		SessionId:     c.Param("id"),
		ContactNumber: strings.TrimSpace(payload.ContactNumber),
		Priority:      payload.Priority,
		Enabled:       enabled,
		AssignedAt:    time.Now(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := GetDB(c).Create(&row).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create assignment", err.Error())
	}
	return ok(c, row)
}

func deleteAssignment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid assignment ID", nil)
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.AgentAssignment{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete assignment", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}
