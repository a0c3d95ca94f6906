// Package adminapi exposes the console's REST and streaming endpoints on the
// embedded web server.
package adminapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/app"
	"gorm.io/gorm"
)

var application *app.Application

// Init wires the admin API routes onto the web server. Must run after
// webserver.Init.
func Init(a *app.Application) {
	application = a
	registerSessionRoutes()
	registerMessageRoutes()
	registerContactRoutes()
	registerAgentRoutes()
	registerCampaignRoutes()
	registerTemplateRoutes()
	registerStreamRoutes()
	registerMetricsRoutes()
	registerSystemRoutes()
}

// GetDB returns the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return application.DB().WithContext(c.Request().Context())
}

type apiResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiResponse{Code: "OK", Data: data})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, apiResponse{Code: code, Message: message, Detail: detail})
}

type pagedResponse struct {
	Code     string      `json:"code"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, pagedResponse{
		Code: "OK", Data: data, Total: total, Page: page, PageSize: pageSize,
	})
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
