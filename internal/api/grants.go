package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/eu-grants-monitor/internal/assist"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/prefill"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListGrants(c echo.Context) error {
	params := db.ListParams{
		Query:  strings.TrimSpace(c.QueryParam("q")),
		SortBy: c.QueryParam("sort"),
	}
	if raw := c.QueryParam("program"); raw != "" {
		params.Program = models.ParseFundingProgram(raw)
	}

	var err error
	if params.MinAmount, err = queryFloat(c, "min_amount"); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if params.MaxAmount, err = queryFloat(c, "max_amount"); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if params.MinDaysToDeadline, err = queryInt(c, "deadline_days_min", 0); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if params.Limit, err = queryInt(c, "limit", 0); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if params.Offset, err = queryInt(c, "offset", 0); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if raw := c.QueryParam("complexity_max"); raw != "" {
		level := models.ComplexityLevel(strings.ToLower(raw))
		if !level.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "complexity_max must be simple, medium or complex"})
		}
		params.MaxComplexity = level
	}
	switch params.SortBy {
	case "", "priority", "deadline", "amount":
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "sort must be priority, deadline or amount"})
	}

	result, err := s.Store.ListGrants(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list grants: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetGrant(c echo.Context) error {
	g, err := s.loadGrant(c)
	if g == nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// loadGrant writes the error response itself when the grant cannot be loaded;
// callers return the second value whenever the grant is nil.
func (s *Server) loadGrant(c echo.Context) (*models.Grant, error) {
	g, err := s.Store.GetGrant(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return g, nil
}

type assistRequest struct {
	AssistanceType string                  `json:"assistance_type"`
	Profile        *models.BusinessProfile `json:"business_profile"`
}

func (s *Server) handleAssist(c echo.Context) error {
	var req assistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	kind := strings.ToLower(strings.TrimSpace(req.AssistanceType))
	if kind == "" {
		kind = "guidance"
	}
	if kind != "guidance" && kind != "generate" && kind != "analyze" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "assistance_type must be guidance, generate or analyze"})
	}

	profile := s.profile
	if req.Profile != nil {
		profile = *req.Profile
	}
	if err := profile.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	g, err := s.loadGrant(c)
	if g == nil {
		return err
	}
	s.Metrics.RecordAssist(kind)

	if kind == "analyze" {
		requirements := assist.AnalyzeRequirements(*g)
		return c.JSON(http.StatusOK, map[string]any{
			"grant_id":     g.ID,
			"requirements": requirements,
			"fit":          assist.AnalyzeFit(*g, profile, requirements),
		})
	}

	guidance, err := assist.GenerateAssistance(*g, profile, s.now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if kind == "guidance" {
		return c.JSON(http.StatusOK, guidance)
	}

	form := prefill.Prefill(*g, profile, guidance)
	docs, err := s.generator.Package(form, *g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"grant_id":           g.ID,
		"guidance":           guidance,
		"form":               form,
		"completion_percent": form.CompletionPercent(),
		"missing_critical":   form.MissingCritical(),
		"status":             form.Status(),
		"documents":          docs,
	})
}

func (s *Server) handleBudgetWorkbook(c echo.Context) error {
	g, err := s.loadGrant(c)
	if g == nil {
		return err
	}
	guidance, err := assist.GenerateAssistance(*g, s.profile, s.now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	doc, err := s.generator.BudgetWorkbook(prefill.Prefill(*g, s.profile, guidance), *g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", g.ID+"_budget.xlsx"))
	return c.Blob(http.StatusOK, xlsxContentType, doc.Content)
}

func (s *Server) handleListSessions(c echo.Context) error {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	sessions, err := s.Store.ListMonitoringSessions(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleListAlerts(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	alerts, err := s.Store.ListAlerts(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, alerts)
}
