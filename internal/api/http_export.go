package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tomatodo/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"id", "title", "description", "completed", "importance",
	"category", "deadline", "tomato_count", "create_time", "update_time",
}

// ExportTodos 将当前过滤结果导出为 csv 或 excel 文件流。
// 两种格式共用同一行集合，格式分支里没有业务逻辑。
func (h *HTTPHandler) ExportTodos(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "excel" {
		BadRequest(c, "format 参数必须是 csv 或 excel")
		return
	}

	params, err := parseTodoQuery(c, requestUser.ID)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	todos, err := h.repo.ListTodos(ctx, params)
	if err != nil {
		logrus.WithError(err).Error("failed to load todos for export")
		InternalError(c, "导出待办事项失败")
		return
	}

	filename := fmt.Sprintf("todos_%s_%s", requestUser.Username, time.Now().Format("20060102150405"))

	switch format {
	case "excel":
		payload, err := renderExcel(todos)
		if err != nil {
			logrus.WithError(err).Error("failed to render excel export")
			InternalError(c, "导出待办事项失败")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)

	default:
		payload, err := renderCSV(todos)
		if err != nil {
			logrus.WithError(err).Error("failed to render csv export")
			InternalError(c, "导出待办事项失败")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
	}
}

func renderCSV(todos []entity.DbTodo) ([]byte, error) {
	var buf bytes.Buffer
	// UTF-8 BOM，避免 Excel 打开中文乱码
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, todo := range todos {
		if err := writer.Write(exportRow(todo)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderExcel(todos []entity.DbTodo) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for rowIdx, todo := range todos {
		for col, value := range exportRow(todo) {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportRow(todo entity.DbTodo) []string {
	deadline := ""
	if todo.Deadline != nil {
		deadline = todo.Deadline.Format(time.RFC3339)
	}
	return []string{
		strconv.FormatUint(uint64(todo.ID), 10),
		todo.Title,
		todo.Description,
		strconv.FormatBool(todo.Completed),
		strconv.Itoa(todo.Importance),
		todo.Category,
		deadline,
		strconv.Itoa(todo.TomatoCount),
		todo.CreatedAt.Format(time.RFC3339),
		todo.UpdatedAt.Format(time.RFC3339),
	}
}
