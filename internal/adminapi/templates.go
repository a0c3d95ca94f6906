package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/webserver"
	"gorm.io/gorm"
)

func registerTemplateRoutes() {
	webserver.ApiGET("/templates", listTemplates)
	webserver.ApiPOST("/templates", createTemplate)
	webserver.ApiPUT("/templates/:id", updateTemplate)
	webserver.ApiDELETE("/templates/:id", deleteTemplate)
}

type templatePayload struct {
	Name   string `json:"name"`
	Body   string `json:"body"`
	Remark string `json:"remark"`
}

func listTemplates(c echo.Context) error {
	var rows []domain.MsgTemplate
	db := GetDB(c)
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("name LIKE ?", "%"+q+"%")
	}
	if err := db.Order("name ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query templates", err.Error())
	}
	return ok(c, rows)
}

func createTemplate(c echo.Context) error {
	var payload templatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse template parameters", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" || payload.Body == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name and body are required", nil)
	}

	var exists int64
	GetDB(c).Model(&domain.MsgTemplate{}).Where("name = ?", payload.Name).Count(&exists)
	if exists > 0 {
		return fail(c, http.StatusConflict, "TEMPLATE_EXISTS", "Template name already exists", nil)
	}

	t := domain.MsgTemplate{
		Name:      payload.Name,
		Body:      payload.Body,
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := GetDB(c).Create(&t).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create template", err.Error())
	}
	return ok(c, t)
}

func updateTemplate(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
	}
	var payload templatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse template parameters", err.Error())
	}

	var t domain.MsgTemplate
	if err := GetDB(c).Where("id = ?", id).First(&t).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query template", err.Error())
	}

	if name := strings.TrimSpace(payload.Name); name != "" {
		t.Name = name
	}
	if payload.Body != "" {
		t.Body = payload.Body
	}
	if payload.Remark != "" {
		t.Remark = payload.Remark
	}
	t.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&t).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update template", err.Error())
	}
	return ok(c, t)
}

func deleteTemplate(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.MsgTemplate{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete template", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}
