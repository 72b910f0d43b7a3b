package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/gin-gonic/gin"
)

type programPayload struct {
	ID             string     `json:"id"`
	UniversityName string     `json:"university_name"`
	ProgramName    string     `json:"program_name"`
	DegreeType     string     `json:"degree_type"`
	Country        string     `json:"country"`
	City           string     `json:"city"`
	Description    string     `json:"description"`
	ApplicationFee string     `json:"application_fee"`
	TuitionPerYear string     `json:"tuition_per_year"`
	DurationMonths int        `json:"duration_months"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toProgramPayload(program *programs.Program) programPayload {
	return programPayload{
		ID:             program.ID,
		UniversityName: program.UniversityName,
		ProgramName:    program.ProgramName,
		DegreeType:     program.DegreeType,
		Country:        program.Country,
		City:           program.City,
		Description:    program.Description,
		ApplicationFee: program.ApplicationFee,
		TuitionPerYear: program.TuitionPerYear,
		DurationMonths: program.DurationMonths,
		Deadline:       program.Deadline,
		CreatedAt:      program.CreatedAt,
		UpdatedAt:      program.UpdatedAt,
	}
}

type programCreatePayload struct {
	UniversityName string     `json:"university_name"`
	ProgramName    string     `json:"program_name"`
	DegreeType     string     `json:"degree_type"`
	Country        string     `json:"country"`
	City           string     `json:"city"`
	Description    string     `json:"description"`
	ApplicationFee string     `json:"application_fee"`
	TuitionPerYear string     `json:"tuition_per_year"`
	DurationMonths int        `json:"duration_months"`
	Deadline       *time.Time `json:"deadline"`
}

type programPatchPayload struct {
	UniversityName *string    `json:"university_name"`
	ProgramName    *string    `json:"program_name"`
	DegreeType     *string    `json:"degree_type"`
	Country        *string    `json:"country"`
	City           *string    `json:"city"`
	Description    *string    `json:"description"`
	ApplicationFee *string    `json:"application_fee"`
	TuitionPerYear *string    `json:"tuition_per_year"`
	DurationMonths *int       `json:"duration_months"`
	Deadline       *time.Time `json:"deadline"`
}

func (h *httpHandler) handleCreateProgram(c *gin.Context) {
	var request programCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	program, err := h.programs.Create(c.Request.Context(), programs.CreateInput{
		UniversityName: request.UniversityName,
		ProgramName:    request.ProgramName,
		DegreeType:     request.DegreeType,
		Country:        request.Country,
		City:           request.City,
		Description:    request.Description,
		ApplicationFee: request.ApplicationFee,
		TuitionPerYear: request.TuitionPerYear,
		DurationMonths: request.DurationMonths,
		Deadline:       request.Deadline,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProgramPayload(program))
}

func (h *httpHandler) handleListPrograms(c *gin.Context) {
	filter := programs.ListFilter{
		Search:     c.Query("search"),
		Country:    c.Query("country"),
		DegreeType: c.Query("degree_type"),
	}
	if c.Query("sort") == "deadline" {
		filter.Sort = programs.SortDeadlineAscending
	}

	result, err := h.programs.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]programPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toProgramPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleGetProgram(c *gin.Context) {
	program, err := h.programs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProgramPayload(program))
}

func (h *httpHandler) handleUpdateProgram(c *gin.Context) {
	var request programPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	program, err := h.programs.Update(c.Request.Context(), c.Param("id"), programs.Patch{
		UniversityName: request.UniversityName,
		ProgramName:    request.ProgramName,
		DegreeType:     request.DegreeType,
		Country:        request.Country,
		City:           request.City,
		Description:    request.Description,
		ApplicationFee: request.ApplicationFee,
		TuitionPerYear: request.TuitionPerYear,
		DurationMonths: request.DurationMonths,
		Deadline:       request.Deadline,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProgramPayload(program))
}

func (h *httpHandler) handleDeleteProgram(c *gin.Context) {
	if err := h.programs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
