package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/webserver"
	"github.com/talkincode/waconsole/pkg/metrics"
)

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", getMetricRange)
	webserver.ApiGET("/metrics/hub/dropped", getHubDropped)
}

// getMetricRange returns stored datapoints for one metric between ?start=
// and ?end= unix seconds, defaulting to the last hour.
func getMetricRange(c echo.Context) error {
	name := c.Param("name")
	end, _ := strconv.ParseInt(c.QueryParam("end"), 10, 64)
	if end == 0 {
		end = time.Now().Unix()
	}
	start, _ := strconv.ParseInt(c.QueryParam("start"), 10, 64)
	if start == 0 {
		start = end - 3600
	}
	if start >= end {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "start must be before end", nil)
	}
	points := metrics.Range(name, start, end)
	return ok(c, map[string]interface{}{"metric": name, "points": points})
}

func getHubDropped(c echo.Context) error {
	return ok(c, map[string]interface{}{
		"dropped":     application.Hub().Dropped(),
		"subscribers": application.Hub().SubscriberCount(),
	})
}
