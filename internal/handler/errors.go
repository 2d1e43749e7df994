package handler

import (
	"errors"

	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/logger"
	"crowdfunding/internal/service"
	"crowdfunding/pkg/response"

	"github.com/gin-gonic/gin"
)

var businessCodes = map[string]int{
	"ProjectNotFound":              response.CodeProjectNotFound,
	"ProjectNotActive":             response.CodeProjectNotActive,
	"TargetAmountReached":          response.CodeTargetAmountReached,
	"IncreaseAmount":               response.CodeIncreaseAmount,
	"OnlyOwnerCanStopCrowdFunding": response.CodeOnlyOwnerCanStopCrowdFunding,
	"DuplicateProjectIdNotAllowed": response.CodeDuplicateProjectIdNotAllowed,
	"OnlyOwnerCanInitiate":         response.CodeOnlyOwnerCanInitiate,
	"ArithmeticOverflow":           response.CodeArithmeticOverflow,
	"InsufficientBalance":          response.CodeInsufficientBalance,
	"KeepAlive":                    response.CodeKeepAlive,
	"ExistentialDeposit":           response.CodeExistentialDeposit,
	"TransferFailed":               response.CodeTransferFailed,
}

// writeError 把服务层错误翻译成响应码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, crowdfund.ErrInvalidProjectID):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrBusy):
		response.Error(c, response.CodeBusy, service.ErrBusy.Error())
	case errors.Is(err, service.ErrRechargeDisabled):
		response.Error(c, response.CodeRechargeDisabled, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrBalanceOverflow):
		response.BusinessError(c, response.CodeArithmeticOverflow, "ArithmeticOverflow", err.Error())
	default:
		name := crowdfund.ErrorName(err)
		if code, ok := businessCodes[name]; ok {
			response.BusinessError(c, code, name, err.Error())
			return
		}
		logger.Error("[Handler] 内部错误: path=%s, err=%v", c.Request.URL.Path, err)
		response.ServerError(c, "服务器内部错误")
	}
}
