package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tomatodo/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Success 返回统一格式的成功响应，code 与 HTTP 状态码一致
func Success(c *gin.Context, data interface{}, msg string) {
	if strings.TrimSpace(msg) == "" {
		msg = "操作成功"
	}
	c.JSON(http.StatusOK, entity.Response{
		Code: http.StatusOK,
		Msg:  msg,
		Data: data,
	})
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, msg string) {
	c.JSON(status, entity.Response{
		Code: status,
		Msg:  msg,
	})
}

// AbortError 终止请求并返回错误响应（中间件使用）
func AbortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, entity.Response{
		Code: status,
		Msg:  msg,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusBadRequest, msg)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusUnauthorized, msg)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusForbidden, msg)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusNotFound, msg)
}

// Conflict 409 唯一性冲突
func Conflict(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusConflict, msg)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusInternalServerError, msg)
}

// UpstreamError 502 外部身份服务调用失败
func UpstreamError(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusBadGateway, msg)
}

// ValidationFailed 将绑定错误转换为字段级错误列表后返回 400。
// 非验证类绑定错误（格式非法的 JSON 等）退化为普通 400。
func ValidationFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(c, "请求体格式错误")
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = validationMessage(fe)
	}
	c.JSON(http.StatusBadRequest, entity.Response{
		Code: http.StatusBadRequest,
		Msg:  "数据验证失败",
		Data: fields,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "email":
		return "邮箱格式不正确"
	case "min":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "max":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	default:
		return fmt.Sprintf("不满足约束 %s", fe.Tag())
	}
}
