package handler

import (
	"crowdfunding/internal/service"
	"crowdfunding/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	crowdfundService *service.CrowdfundService
	accountService   *service.AccountService
}

func NewHandler(crowdfundService *service.CrowdfundService, accountService *service.AccountService) *Handler {
	return &Handler{
		crowdfundService: crowdfundService,
		accountService:   accountService,
	}
}

// ============================================================
// 众筹项目
// ============================================================

// InitiateProject 发起众筹
// POST /api/v1/project/initiate
func (h *Handler) InitiateProject(c *gin.Context) {
	var req service.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	resp, err := h.crowdfundService.Initiate(c.Request.Context(), callerFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// FundProject 出资
// POST /api/v1/project/fund
func (h *Handler) FundProject(c *gin.Context) {
	var req service.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	resp, err := h.crowdfundService.Fund(c.Request.Context(), callerFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// StopProject 发起人停止众筹
// POST /api/v1/project/stop
func (h *Handler) StopProject(c *gin.Context) {
	var req service.StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	resp, err := h.crowdfundService.Stop(c.Request.Context(), callerFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// GetProject GET /api/v1/project/detail?project_id=0x...
func (h *Handler) GetProject(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		response.ParamError(c, "project_id 不能为空")
		return
	}

	resp, err := h.crowdfundService.GetProject(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// ============================================================
// 账户
// ============================================================

// GetBalance GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id 不能为空")
		return
	}

	resp, err := h.accountService.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// Recharge 充值，仅开发环境开放
// POST /api/v1/account/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req service.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	resp, err := h.accountService.Recharge(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}
