package controller

import (
	"errors"
	"net/http"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/service"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SurveyController struct {
	SurveyService *service.SurveyService
}

func NewSurveyController(surveyService *service.SurveyService) *SurveyController {
	return &SurveyController{SurveyService: surveyService}
}

type IdentityRequest struct {
	Name string `json:"name" binding:"required"`
}

type ScoreRequest struct {
	Project  string `json:"project" binding:"required"`
	Reviewee string `json:"reviewee" binding:"required"`
	Subitem  string `json:"subitem" binding:"required"`
	Score    int    `json:"score" binding:"required"`
}

// Reviewers godoc
// @Summary 填答者名单
// @Description 返回可选择的填答者身分
// @Tags 问卷
// @Produce json
// @Success 200 {object} util.Response{data=[]string}
// @Failure 503 {object} util.Response "尚未上传设定档"
// @Router /api/survey/reviewers [get]
func (c *SurveyController) Reviewers(ctx *gin.Context) {
	reviewers, err := c.SurveyService.Reviewers(ctx.Request.Context())
	if err != nil {
		respond(ctx, nil, err)
		return
	}
	util.Success(ctx, reviewers)
}

// StartSession godoc
// @Summary 开始填答
// @Tags 问卷
// @Produce json
// @Success 201 {object} util.Response{data=model.PageView}
// @Failure 503 {object} util.Response "尚未上传设定档"
// @Router /api/survey/sessions [post]
func (c *SurveyController) StartSession(ctx *gin.Context) {
	view, err := c.SurveyService.StartSession(ctx.Request.Context())
	if err != nil {
		respond(ctx, view, err)
		return
	}
	util.Created(ctx, view)
}

// GetSession godoc
// @Summary 当前页面
// @Tags 问卷
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.PageView}
// @Failure 404 {object} util.Response "会话不存在或已过期"
// @Router /api/survey/sessions/{id} [get]
func (c *SurveyController) GetSession(ctx *gin.Context) {
	view, err := c.SurveyService.View(ctx.Request.Context(), ctx.Param("id"))
	respond(ctx, view, err)
}

// Identify godoc
// @Summary 选择身分
// @Tags 问卷
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param body body IdentityRequest true "填答者"
// @Success 200 {object} util.Response{data=model.PageView}
// @Failure 400 {object} util.Response "不在名单中"
// @Failure 409 {object} util.Response "已选择身分"
// @Router /api/survey/sessions/{id}/identity [post]
func (c *SurveyController) Identify(ctx *gin.Context) {
	var req IdentityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	view, err := c.SurveyService.Identify(ctx.Request.Context(), ctx.Param("id"), req.Name)
	respond(ctx, view, err)
}

// RecordScore godoc
// @Summary 记录分数
// @Tags 问卷
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param body body ScoreRequest true "作答"
// @Success 200 {object} util.Response{data=model.PageView}
// @Failure 400 {object} util.Response "分数不在 1-10 或题目不存在"
// @Router /api/survey/sessions/{id}/scores [put]
func (c *SurveyController) RecordScore(ctx *gin.Context) {
	var req ScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	view, err := c.SurveyService.RecordScore(ctx.Request.Context(), ctx.Param("id"), req.Project, req.Reviewee, req.Subitem, req.Score)
	respond(ctx, view, err)
}

// Next godoc
// @Summary 下一页
// @Tags 问卷
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.PageView}
// @Failure 400 {object} util.Response{data=model.PageView} "本页未填完"
// @Router /api/survey/sessions/{id}/next [post]
func (c *SurveyController) Next(ctx *gin.Context) {
	view, err := c.SurveyService.Next(ctx.Request.Context(), ctx.Param("id"))
	respond(ctx, view, err)
}

// Prev godoc
// @Summary 上一页
// @Tags 问卷
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.PageView}
// @Router /api/survey/sessions/{id}/prev [post]
func (c *SurveyController) Prev(ctx *gin.Context) {
	view, err := c.SurveyService.Prev(ctx.Request.Context(), ctx.Param("id"))
	respond(ctx, view, err)
}

// Finalize godoc
// @Summary 提交问卷
// @Tags 问卷
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.PageView}
// @Failure 400 {object} util.Response{data=model.PageView} "本页未填完"
// @Failure 409 {object} util.Response{data=model.PageView} "已提交"
// @Failure 500 {object} util.Response{data=model.PageView} "写入失败，可重试"
// @Router /api/survey/sessions/{id}/finalize [post]
func (c *SurveyController) Finalize(ctx *gin.Context) {
	view, err := c.SurveyService.Finalize(ctx.Request.Context(), ctx.Param("id"))
	respond(ctx, view, err)
}

// respond 把服务层错误映射为 HTTP 状态码，错误时仍附带当前视图
func respond(ctx *gin.Context, view *model.PageView, err error) {
	if err == nil {
		util.Success(ctx, view)
		return
	}

	status := statusFor(err)
	if errors.Is(err, util.ErrPersistFailed) && view != nil {
		// 会话停留在最后一页，前端可直接重试提交
		logger.Log.Error("Submission not persisted", zap.Error(err), zap.String("session", view.SessionID))
		util.ErrorWithData(ctx, status, util.ErrPersistFailed.Error(), view)
		return
	}
	if status == http.StatusInternalServerError {
		util.LogInternalError(ctx, err)
		return
	}

	message := err.Error()
	if errors.Is(err, util.ErrConfigurationMissing) {
		message = util.ErrConfigurationMissing.Error()
	}
	if view != nil {
		util.ErrorWithData(ctx, status, message, view)
		return
	}
	util.Error(ctx, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, util.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrAlreadySubmitted),
		errors.Is(err, util.ErrAlreadyIdentified),
		errors.Is(err, util.ErrLockBusy):
		return http.StatusConflict
	case errors.Is(err, util.ErrPageIncomplete),
		errors.Is(err, util.ErrUnknownReviewer),
		errors.Is(err, util.ErrNotIdentified),
		errors.Is(err, util.ErrInvalidScore),
		errors.Is(err, util.ErrUnknownQuestion),
		errors.Is(err, util.ErrNotCurrentPage),
		errors.Is(err, util.ErrFirstPage),
		errors.Is(err, util.ErrLastPage),
		errors.Is(err, util.ErrNotLastPage),
		errors.Is(err, util.ErrNoPages):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
