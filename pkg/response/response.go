package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess         = 0
	CodeParamError      = 400
	CodeUnauthorized    = 401
	CodeTooManyRequests = 429
	CodeServerError     = 500
	CodeBusy            = 503
)

// 业务错误码，和状态机的错误一一对应
const (
	CodeProjectNotFound              = 1001
	CodeProjectNotActive             = 1002
	CodeTargetAmountReached          = 1003
	CodeIncreaseAmount               = 1004
	CodeOnlyOwnerCanStopCrowdFunding = 1005
	CodeDuplicateProjectIdNotAllowed = 1006
	CodeOnlyOwnerCanInitiate         = 1007
	CodeArithmeticOverflow           = 1008
	CodeInsufficientBalance          = 1009
	CodeKeepAlive                    = 1010
	CodeExistentialDeposit           = 1011
	CodeTransferFailed               = 1012
	CodeRechargeDisabled             = 1013
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"` // 业务错误名称，如 IncreaseAmount
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, name, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Error:   name,
	})
}

// Abort 中断请求并以指定 HTTP 状态码返回，用于鉴权、限流等中间件
func Abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}
