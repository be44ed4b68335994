package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"surveyplanner/internal/models"
)

// Response helpers. Every endpoint answers with models.APIResponse.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

// statusResponse answers 200 for success and partial success and 502 for a
// failed substrate operation, with the report as obj either way.
func statusResponse(c echo.Context, status string, obj interface{}) error {
	code := http.StatusOK
	if status == "error" {
		code = http.StatusBadGateway
	}
	return c.JSON(code, models.APIResponse{
		Status: status != "error",
		Msg:    status,
		Obj:    obj,
	})
}

func paginatedNamedResponse(key string, data interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		key: data,
		"pagination": map[string]interface{}{
			"total_pages":  totalPages(total, limit),
			"current_page": page,
			"per_page":     limit,
			"total_record": total,
		},
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// queryInt reads an integer query parameter.
func queryInt(c echo.Context, key string, defaultVal int) int {
	if v, err := strconv.Atoi(c.QueryParam(key)); err == nil {
		return v
	}
	return defaultVal
}

func queryBool(c echo.Context, key string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(key))
	return v
}

func paramID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
