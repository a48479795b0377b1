package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/service"
	"lcs-classroom/backend/pkg/response"
)

// VideoHandler 课程视频 HTTP 处理器
type VideoHandler struct {
	videoSvc service.VideoService
}

// NewVideoHandler 创建 VideoHandler
func NewVideoHandler(videoSvc service.VideoService) *VideoHandler {
	return &VideoHandler{videoSvc: videoSvc}
}

// ListByClass 课程视频列表（需管理员或已通过审核）
// GET /api/v1/classes/:id/videos
func (h *VideoHandler) ListByClass(c *gin.Context) {
	userID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}
	classID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	videos, err := h.videoSvc.ListByClass(c.Request.Context(), classID, userID, role)
	if err != nil {
		h.handleVideoError(c, err)
		return
	}

	response.OK(c, videos)
}

// Create 添加课程视频（管理员）
// POST /api/v1/classes/:id/videos
func (h *VideoHandler) Create(c *gin.Context) {
	var req dto.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	classID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	video, err := h.videoSvc.Create(c.Request.Context(), classID, &req, callerID)
	if err != nil {
		h.handleVideoError(c, err)
		return
	}

	response.Created(c, video)
}

// Delete 删除视频（管理员）
// DELETE /api/v1/videos/:id
func (h *VideoHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.videoSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleVideoError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *VideoHandler) handleVideoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "课程不存在")
	case errors.Is(err, service.ErrVideoNotFound):
		response.NotFound(c, 13001, "视频不存在")
	case errors.Is(err, service.ErrInvalidVideoRef):
		response.BadRequest(c, 13002, "视频引用无效")
	case errors.Is(err, service.ErrNotAuthorized):
		response.Forbidden(c, 14003, "选课审核通过后才能观看课程视频")
	default:
		response.InternalError(c)
	}
}
