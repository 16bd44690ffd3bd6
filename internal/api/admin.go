package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"lead-intake/internal/common/auth"
	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/intake/store"
	"lead-intake/internal/models"
)

const dateLayout = "2006-01-02"

func (h *Handler) RegisterAdminRoutes(admin *echo.Group) {
	admin.GET("/records", h.ListRecords)
	admin.GET("/records.csv", h.ExportRecords)
	admin.DELETE("/records", h.PurgeRecords)
}

func (h *Handler) ListRecords(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	page, err := h.admin.Query(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// ExportRecords streams every matching record as CSV, paging through the
// mirror at the maximum page size.
func (h *Handler) ExportRecords(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	f.Limit = store.MaxPageSize
	f.Offset = 0

	var records []models.DiagnosisRecord
	for {
		page, err := h.admin.Query(c.Request().Context(), f)
		if err != nil {
			return err
		}
		records = append(records, page.Records...)
		if len(page.Records) == 0 || len(records) >= page.Total {
			break
		}
		f.Offset += len(page.Records)
	}

	name := fmt.Sprintf("records-%s.csv", time.Now().In(crm.Seoul()).Format("20060102-1504"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().WriteHeader(http.StatusOK)
	return store.WriteCSV(c.Response(), records)
}

type purgeRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) PurgeRecords(c echo.Context) error {
	var req purgeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewInputValidationError("body must be {\"ids\": [...]}")
	}
	if len(req.IDs) == 0 {
		return apperrors.NewInputValidationError("ids must not be empty")
	}

	res, err := h.admin.Purge(c.Request().Context(), req.IDs)
	if err != nil {
		return err
	}
	h.logger.Info("admin purge", map[string]interface{}{
		"subject": auth.SubjectFromContext(c.Request().Context()),
		"count":   len(req.IDs),
	})
	return c.JSON(http.StatusOK, res)
}

// filterFromQuery reads the admin filter. Dates are calendar days in the
// business time zone; "to" is inclusive.
func filterFromQuery(c echo.Context) (store.Filter, error) {
	var f store.Filter

	if v := c.QueryParam("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, crm.Seoul())
		if err != nil {
			return f, apperrors.NewInputValidationError("from must be YYYY-MM-DD")
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, crm.Seoul())
		if err != nil {
			return f, apperrors.NewInputValidationError("to must be YYYY-MM-DD")
		}
		f.To = t.AddDate(0, 0, 1)
	}

	f.Recommendation = models.Recommendation(c.QueryParam("recommendation"))
	f.Band = models.ComparisonBand(c.QueryParam("band"))
	f.ConsultationType = c.QueryParam("consultationType")

	if v := c.QueryParam("source"); v != "" {
		src, err := models.ParseSource(v)
		if err != nil {
			return f, apperrors.NewInputValidationError(err.Error())
		}
		f.Source = src
	}

	if v := c.QueryParam("sort"); v != "" {
		if !slices.Contains(store.SortKeys(), v) {
			return f, apperrors.NewInputValidationError("unknown sort key " + v)
		}
		f.Sort = v
	}
	f.Ascending = c.QueryParam("order") == "asc"

	var err error
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.NewInputValidationError(name + " must be a non-negative integer")
	}
	return n, nil
}
