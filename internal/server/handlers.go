package server

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/claim"
	"github.com/lijunhao/projfin/internal/importer"
	"github.com/lijunhao/projfin/internal/project"
	"github.com/lijunhao/projfin/internal/tabular"
	"github.com/lijunhao/projfin/internal/user"
)

func (s *Server) handleLogin(c *gin.Context) {
	var in user.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}

	u, err := s.deps.Users.Login(c.Request.Context(), in, c.GetHeader("X-External-Id"))
	if err != nil {
		fail(c, err)
		return
	}
	token, err := s.deps.Tokens.Issue(u.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"token": token, "user": u})
}

func (s *Server) handleListProjects(c *gin.Context) {
	includeDisabled := c.Query("includeDisabled") == "true"
	projects, err := s.deps.Projects.List(c.Request.Context(), c.Query("keyword"), includeDisabled, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"projects": projects})
}

func (s *Server) handleUpsertProject(c *gin.Context) {
	var in project.UpsertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	p, err := s.deps.Projects.Upsert(c.Request.Context(), in, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"project": p})
}

func (s *Server) handleUpsertPeriodData(c *gin.Context) {
	var in project.PeriodDataInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	labor, taxFee, err := s.deps.Projects.UpsertPeriodData(c.Request.Context(), in, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"labor": labor, "taxFee": taxFee})
}

func (s *Server) handleListClaims(c *gin.Context) {
	filter := claim.ListFilter{
		Scope:     c.Query("scope"),
		Status:    c.Query("status"),
		ProjectID: c.Query("projectId"),
		Period:    c.Query("period"),
	}
	claims, err := s.deps.Claims.List(c.Request.Context(), filter, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"claims": claims})
}

func (s *Server) handleSaveClaim(c *gin.Context) {
	var in claim.SaveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	result, err := s.deps.Claims.CreateOrUpdate(c.Request.Context(), in, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (s *Server) handleClaimDetail(c *gin.Context) {
	result, err := s.deps.Claims.Detail(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (s *Server) handleSubmitClaim(c *gin.Context) {
	saved, err := s.deps.Claims.Submit(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"claim": saved})
}

func (s *Server) handleDecideClaim(c *gin.Context) {
	var in struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	action := claim.Action(strings.TrimSpace(in.Action))
	if !action.IsValid() {
		fail(c, apperr.Validation("action must be approve, reject or void"))
		return
	}
	saved, err := s.deps.Claims.Decide(c.Request.Context(), c.Param("id"), action, in.Reason, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"claim": saved})
}

// handlePaperImport accepts either a multipart upload with a spreadsheet
// under the "file" field, or a JSON body with inline rows.
func (s *Server) handlePaperImport(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.handlePaperUpload(c)
		return
	}

	var in struct {
		Period string              `json:"period"`
		Mode   string              `json:"mode"`
		Rows   []importer.PaperRow `json:"rows"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	mode := in.Mode
	if mode == "" {
		mode = "manual"
	}
	job, err := s.deps.Paper.Import(c.Request.Context(), in.Period, in.Rows, mode, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"job": job})
}

func (s *Server) handlePaperUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, apperr.Validation("missing spreadsheet upload under field %q", "file"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		fail(c, apperr.Validation("cannot open uploaded file: %s", err))
		return
	}
	defer f.Close()

	rows, err := tabular.ReadPaperRows(f)
	if err != nil {
		fail(c, err)
		return
	}
	job, err := s.deps.Paper.Import(c.Request.Context(), c.PostForm("period"), rows, "excel", currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"job": job})
}

// handleRevenueImport runs a revenue batch. A body without rows triggers a
// pull from the configured ERP feed.
func (s *Server) handleRevenueImport(c *gin.Context) {
	var in struct {
		Period string                `json:"period"`
		Rows   []importer.RevenueRow `json:"rows"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	job, err := s.deps.Revenue.Import(c.Request.Context(), in.Period, in.Rows, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"job": job})
}

func (s *Server) handleGenerateSettlement(c *gin.Context) {
	var in struct {
		ProjectID string `json:"projectId"`
		Period    string `json:"period"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	saved, err := s.deps.Settlements.Generate(c.Request.Context(), in.ProjectID, in.Period, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"settlement": saved})
}

func (s *Server) handleSettlementDetail(c *gin.Context) {
	saved, err := s.deps.Settlements.Detail(c.Request.Context(),
		c.Query("settlementId"), c.Query("projectId"), c.Query("period"), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"settlement": saved})
}

// handleMonthlyReport generates the monthly workbook. With ?download=true
// it streams the xlsx directly; otherwise the file rides the JSON envelope
// base64-encoded.
func (s *Server) handleMonthlyReport(c *gin.Context) {
	var in struct {
		Period    string `json:"period"`
		ProjectID string `json:"projectId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	monthly, err := s.deps.Reports.GenerateMonthly(c.Request.Context(), in.Period, in.ProjectID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", monthly.FileName))
		c.Data(200, monthly.MimeType, monthly.File)
		return
	}
	ok(c, gin.H{
		"report":     monthly,
		"fileBase64": base64.StdEncoding.EncodeToString(monthly.File),
	})
}
