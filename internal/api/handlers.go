package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/validation"
	"lead-intake/internal/models"
)

// Input schema keys, shared with the job workers.
const (
	schemaScore  = "diagnosis.score"
	schemaConv   = "lead.convert"
	schemaDirect = "lead.submit-direct"
)

type Handler struct {
	intake    Intake
	admin     Admin
	validator *validation.Validator
	checks    map[string]HealthCheck
	version   string
	logger    logger.Logger
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/diagnosis/score", h.Score)
	api.POST("/diagnosis", h.SubmitQuiz)
	api.POST("/leads", h.SubmitDirect)
	api.POST("/records/:id/convert", h.Convert)
	api.GET("/records/:id", h.GetRecord)
}

type answersRequest struct {
	Answers models.Answers `json:"answers"`
}

type leadRequest struct {
	Channel models.Channel `json:"channel"`
	Contact models.Contact `json:"contact"`
	Answers models.Answers `json:"answers"`
}

type convertRequest struct {
	Contact models.Contact `json:"contact"`
}

func (h *Handler) Score(c echo.Context) error {
	var req answersRequest
	if err := h.decode(c, schemaScore, nil, &req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.intake.Score(req.Answers))
}

func (h *Handler) SubmitQuiz(c echo.Context) error {
	var req answersRequest
	if err := h.decode(c, schemaScore, nil, &req); err != nil {
		return err
	}
	rec, err := h.intake.SubmitQuiz(c.Request().Context(), req.Answers)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) SubmitDirect(c echo.Context) error {
	var req leadRequest
	if err := h.decode(c, schemaDirect, nil, &req); err != nil {
		return err
	}
	res, err := h.intake.SubmitDirect(c.Request().Context(), req.Contact, req.Channel, req.Answers)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Convert(c echo.Context) error {
	id := c.Param("id")
	var req convertRequest
	if err := h.decode(c, schemaConv, map[string]interface{}{"recordId": id}, &req); err != nil {
		return err
	}
	res, err := h.intake.Convert(c.Request().Context(), id, req.Contact)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetRecord(c echo.Context) error {
	rec, err := h.intake.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// decode validates the JSON body, merged with extra, against the schema
// under key and then unmarshals it into out.
func (h *Handler) decode(c echo.Context, key string, extra map[string]interface{}, out interface{}) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.NewInputValidationError("unreadable request body")
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperrors.NewInputValidationError("request body must be a JSON object")
	}
	for k, v := range extra {
		doc[k] = v
	}

	if h.validator != nil {
		result, err := h.validator.Validate(key, doc)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !result.Valid {
			e := apperrors.NewInputValidationError("request does not match the " + key + " schema")
			return e.WithMetadata("errors", result.GetErrorMessages())
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewInputValidationError(err.Error())
	}
	return nil
}
