package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/webserver"
	"go.uber.org/zap"
)

func registerSystemRoutes() {
	webserver.ApiGET("/settings", listSettings)
	webserver.ApiPOST("/settings", saveSetting)
	webserver.ApiGET("/oprlogs", listOprLogs)
}

// oprLog records a mutating admin action, best effort.
func oprLog(c echo.Context, action, desc string) {
	err := GetDB(c).Create(&domain.SysOprLog{
		OprName:   "admin",
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error
	if err != nil {
		zap.L().Debug("adminapi: oprlog write failed", zap.Error(err))
	}
}

func listSettings(c echo.Context) error {
	var rows []domain.SysConfig
	db := GetDB(c)
	if t := c.QueryParam("type"); t != "" {
		db = db.Where("type = ?", t)
	}
	if err := db.Order("sort ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	return ok(c, rows)
}

func saveSetting(c echo.Context) error {
	var payload struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Type == "" || payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "type and name are required", nil)
	}

	var row domain.SysConfig
	err := GetDB(c).Where("type = ? AND name = ?", payload.Type, payload.Name).First(&row).Error
	if err == nil {
		row.Value = payload.Value
		row.UpdatedAt = time.Now()
		if err := GetDB(c).Save(&row).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update setting", err.Error())
		}
	} else {
		row = domain.SysConfig{
			Type:      payload.Type,
			Name:      payload.Name,
			Value:     payload.Value,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := GetDB(c).Create(&row).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create setting", err.Error())
		}
	}
	oprLog(c, "save_setting", payload.Type+"."+payload.Name)
	return ok(c, row)
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
