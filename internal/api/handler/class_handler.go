package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/service"
	pkgerrors "lcs-classroom/backend/pkg/errors"
	"lcs-classroom/backend/pkg/response"
)

// ClassHandler 课程模块 HTTP 处理器
type ClassHandler struct {
	classSvc      service.ClassService
	enrollmentSvc service.EnrollmentService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(classSvc service.ClassService, enrollmentSvc service.EnrollmentService) *ClassHandler {
	return &ClassHandler{classSvc: classSvc, enrollmentSvc: enrollmentSvc}
}

// List 课程列表
// GET /api/v1/classes
func (h *ClassHandler) List(c *gin.Context) {
	var req dto.ClassListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	classes, total, err := h.classSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, classes, total, req.GetPage(), req.GetPageSize())
}

// ListEnrolled 当前用户已通过审核的课程
// GET /api/v1/classes/enrolled
func (h *ClassHandler) ListEnrolled(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classes, err := h.enrollmentSvc.ListEnrolledClasses(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, classes)
}

// GetByID 课程详情
// GET /api/v1/classes/:id
func (h *ClassHandler) GetByID(c *gin.Context) {
	userID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.classSvc.GetByID(c.Request.Context(), id, userID, role)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, detail)
}

// Create 创建课程（管理员）
// POST /api/v1/classes
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.Created(c, class)
}

// Update 更新课程（管理员）
// PUT /api/v1/classes/:id
func (h *ClassHandler) Update(c *gin.Context) {
	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	class, err := h.classSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, class)
}

// Delete 删除课程（管理员）
// DELETE /api/v1/classes/:id
func (h *ClassHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.classSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *ClassHandler) handleClassError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "课程不存在")
	case errors.Is(err, service.ErrClassHasEnrollments):
		response.Conflict(c, 12002, "该课程已有选课记录，无法删除")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 12003, "课程已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
