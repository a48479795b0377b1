package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/service"
	"lcs-classroom/backend/pkg/response"
)

// EnrollmentHandler 选课模块 HTTP 处理器
type EnrollmentHandler struct {
	enrollmentSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollmentSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentSvc: enrollmentSvc}
}

// Request 申请选课
// POST /api/v1/enrollments
func (h *EnrollmentHandler) Request(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.RequestEnrollment(c.Request.Context(), userID, req.ClassID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.Created(c, result)
}

// ListMine 当前用户的选课记录
// GET /api/v1/enrollments/me
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.enrollmentSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, list)
}

// GetStatus 查询单个 (用户, 课程) 的选课状态
// GET /api/v1/enrollments/:userId/:classId
func (h *EnrollmentHandler) GetStatus(c *gin.Context) {
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}
	userID, classID, ok := pairParams(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.GetStatus(c.Request.Context(), callerID, role, userID, classID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateStatus 审核选课（管理员）
// PATCH /api/v1/enrollments/:userId/:classId
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14004, "选课状态无效")
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}
	userID, classID, ok := pairParams(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.UpdateStatus(c.Request.Context(), callerID, role, userID, classID, req.Status)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// ListForClass 课程选课名单（管理员）
// GET /api/v1/classes/:id/enrollments
func (h *EnrollmentHandler) ListForClass(c *gin.Context) {
	role, ok := MustGetRole(c)
	if !ok {
		return
	}
	classID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.enrollmentSvc.ListForClass(c.Request.Context(), role, classID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, list)
}

// pairParams 读取 /enrollments/:userId/:classId 路径上的两个 ID
func pairParams(c *gin.Context) (userID, classID string, ok bool) {
	if userID, ok = MustGetIDParam(c, "userId"); !ok {
		return "", "", false
	}
	if classID, ok = MustGetIDParam(c, "classId"); !ok {
		return "", "", false
	}
	return userID, classID, true
}

func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "课程不存在")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.Conflict(c, 14001, "已申请过该课程")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 14002, "选课记录不存在")
	case errors.Is(err, service.ErrNotAuthorized):
		response.Forbidden(c, 14003, "无权执行该操作")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, 14004, "选课状态无效")
	default:
		response.InternalError(c)
	}
}
