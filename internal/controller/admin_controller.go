package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/YJLINa/peer-review-form/internal/service"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/gin-gonic/gin"
)

// 上传设定档大小上限
const maxConfigUpload = 10 << 20

type AdminController struct {
	AuthService    *service.AuthService
	ResultsService *service.ResultsService
	UploadService  *service.ConfigUploadService
	ArchiveService *service.ArchiveService
	RosterService  *service.RosterService
	SurveyID       string
}

func NewAdminController(
	authService *service.AuthService,
	resultsService *service.ResultsService,
	uploadService *service.ConfigUploadService,
	archiveService *service.ArchiveService,
	rosterService *service.RosterService,
	surveyID string,
) *AdminController {
	return &AdminController{
		AuthService:    authService,
		ResultsService: resultsService,
		UploadService:  uploadService,
		ArchiveService: archiveService,
		RosterService:  rosterService,
		SurveyID:       surveyID,
	}
}

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 管理者登录
// @Tags 管理
// @Accept json
// @Produce json
// @Param body body LoginRequest true "管理密码"
// @Success 200 {object} util.Response{data=object}
// @Failure 401 {object} util.Response "密码错误"
// @Router /api/admin/login [post]
func (c *AdminController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, err := c.AuthService.Login(req.Password)
	if err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Error(ctx, http.StatusUnauthorized, "密码错误")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"token": token})
}

// UploadConfig godoc
// @Summary 上传题目表或名单
// @Description kind 为 rubric 或 roster，文件为 xlsx 或 csv
// @Tags 管理
// @Accept multipart/form-data
// @Produce json
// @Param kind path string true "rubric|roster"
// @Param file formData file true "设定档"
// @Success 200 {object} util.Response{data=service.UploadResult}
// @Failure 400 {object} util.Response "文件格式或内容错误"
// @Security ApiKeyAuth
// @Router /api/admin/config/{kind} [post]
func (c *AdminController) UploadConfig(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return
	}
	defer file.Close()

	if header.Size > maxConfigUpload {
		util.BadRequest(ctx, "文件过大")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxConfigUpload))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	result, err := c.UploadService.Upload(ctx.Request.Context(), ctx.Param("kind"), header.Filename, data)
	if err != nil {
		if isValidationError(err) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// DownloadArchive godoc
// @Summary 下载归档的设定档
// @Description key 为上传结果中的 archiveKey
// @Tags 管理
// @Produce octet-stream
// @Param key query string true "归档键"
// @Success 200 {file} file
// @Failure 400 {object} util.Response "归档键无效"
// @Failure 404 {object} util.Response "归档不存在"
// @Security ApiKeyAuth
// @Router /api/admin/archive [get]
func (c *AdminController) DownloadArchive(ctx *gin.Context) {
	key := ctx.Query("key")
	reader, err := c.ArchiveService.Open(ctx.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidArchiveKey):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrArchiveNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	defer reader.Close()

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	ctx.DataFromReader(http.StatusOK, -1, util.ContentTypeForExt(filepath.Ext(key)), reader, nil)
}

// ReloadRoster godoc
// @Summary 重新加载设定档
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response{data=object}
// @Failure 503 {object} util.Response "设定档缺失或无效"
// @Security ApiKeyAuth
// @Router /api/admin/roster/reload [post]
func (c *AdminController) ReloadRoster(ctx *gin.Context) {
	if err := c.RosterService.Reload(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
		return
	}
	roster, err := c.RosterService.Current()
	if err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
		return
	}
	util.Success(ctx, gin.H{
		"questions":   roster.Rubric.Total(),
		"reviewers":   len(roster.Reviews.Reviewers()),
		"assignments": len(roster.Entries),
		"loadedAt":    roster.LoadedAt,
	})
}

// ListResults godoc
// @Summary 结果列表
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response{data=[]model.ResultRow}
// @Security ApiKeyAuth
// @Router /api/admin/results [get]
func (c *AdminController) ListResults(ctx *gin.Context) {
	rows, err := c.ResultsService.List(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// ExportResults godoc
// @Summary 导出结果
// @Tags 管理
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Security ApiKeyAuth
// @Router /api/admin/results/export [get]
func (c *AdminController) ExportResults(ctx *gin.Context) {
	filename := fmt.Sprintf("%s_results_%s.xlsx", c.SurveyID, time.Now().Format("20060102_150405"))
	ctx.Header("Content-Type", util.MimeXLSX)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := c.ResultsService.Export(ctx.Request.Context(), ctx.Writer); err != nil {
		if !ctx.Writer.Written() {
			ctx.Writer.Header().Del("Content-Disposition")
			util.LogInternalError(ctx, err)
		}
		return
	}
}

// ClearResults godoc
// @Summary 清空结果表
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response
// @Security ApiKeyAuth
// @Router /api/admin/results [delete]
func (c *AdminController) ClearResults(ctx *gin.Context) {
	if err := c.ResultsService.Clear(ctx.Request.Context()); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListSubmissions godoc
// @Summary 已提交名单
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response{data=[]model.SubmissionRecord}
// @Security ApiKeyAuth
// @Router /api/admin/submissions [get]
func (c *AdminController) ListSubmissions(ctx *gin.Context) {
	records, err := c.ResultsService.Submissions(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// Reconcile godoc
// @Summary 结果与已提交名单对账
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response{data=service.ReconcileReport}
// @Security ApiKeyAuth
// @Router /api/admin/reconcile [get]
func (c *AdminController) Reconcile(ctx *gin.Context) {
	report, err := c.ResultsService.Reconcile(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		util.ErrUnknownConfigKind,
		util.ErrConfigExtMismatch,
		util.ErrRubricColumns,
		util.ErrRubricEmpty,
		util.ErrRubricDuplicate,
		util.ErrRubricOrphanQuestion,
		util.ErrRosterColumns,
		util.ErrInvalidFileType,
		util.ErrInvalidTable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
