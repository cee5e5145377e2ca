package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoreboard"
)

var exportHeaders = []string{"Rank", "Team", "Score", "Solves", "Last solve (UTC)"}

// ScoreboardHandler обрабатывает запросы таблицы результатов
type ScoreboardHandler struct {
	scoreboard ScoreboardUseCase
	audit      AuditRecorder
	now        func() time.Time
}

// NewScoreboardHandler создает новый обработчик таблицы результатов
func NewScoreboardHandler(sb ScoreboardUseCase, audit AuditRecorder) *ScoreboardHandler {
	return &ScoreboardHandler{
		scoreboard: sb,
		audit:      audit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает таблицу результатов. Параметр top ограничивает число строк.
// GET /api/v1/scoreboard/?top=10
func (h *ScoreboardHandler) Get(c *gin.Context) {
	if topStr := c.Query("top"); topStr != "" {
		top, err := strconv.Atoi(topStr)
		if err != nil || top < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid top"})
			return
		}
		rows, err := h.scoreboard.Top(c.Request.Context(), top)
		if err != nil {
			handleServiceError(c, "ScoreboardHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"teams": rows})
		return
	}

	board, err := h.scoreboard.Get(c.Request.Context())
	if err != nil {
		handleServiceError(c, "ScoreboardHandler", err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// TeamRow возвращает строку таблицы одной команды
func (h *ScoreboardHandler) TeamRow(c *gin.Context) {
	teamID := c.MustGet("teamID").(uint)

	row, err := h.scoreboard.TeamRow(c.Request.Context(), teamID)
	if err != nil {
		handleServiceError(c, "ScoreboardHandler", err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Export выгружает таблицу результатов в CSV или Excel
// GET /api/v1/admin/scoreboard/export?format=csv|xlsx
func (h *ScoreboardHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}

	board, err := h.scoreboard.Get(c.Request.Context())
	if err != nil {
		handleServiceError(c, "ScoreboardHandler", err)
		return
	}

	if h.audit != nil {
		h.audit.Record(c.Request.Context(), actorFrom(c), entity.AuditScoreboardExport, "scoreboard", nil, map[string]interface{}{
			"format": format,
			"teams":  len(board.Teams),
		})
	}

	filename := fmt.Sprintf("scoreboard_%s", h.now().Format("2006-01-02_1504"))
	if format == "xlsx" {
		h.exportXLSX(c, board.Teams, filename)
		return
	}
	h.exportCSV(c, board.Teams, filename)
}

func lastSolveCell(r scoreboard.Row) string {
	if r.LastSolve != nil {
		return r.LastSolve.UTC().Format(time.RFC3339)
	}
	return ""
}

// exportCSV пишет CSV с BOM, чтобы Excel корректно открыл UTF-8
func (h *ScoreboardHandler) exportCSV(c *gin.Context, rows []scoreboard.Row, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
	c.Status(http.StatusOK)

	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for _, r := range rows {
		writer.Write([]string{
			strconv.Itoa(r.Rank),
			sanitizeForExcel(r.Name),
			strconv.Itoa(r.TotalScore),
			strconv.Itoa(r.Solves),
			lastSolveCell(r),
		})
	}
}

// exportXLSX пишет Excel через StreamWriter
func (h *ScoreboardHandler) exportXLSX(c *gin.Context, rows []scoreboard.Row, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Scoreboard"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[ScoreboardHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, len(exportHeaders))
	for i, name := range exportHeaders {
		headers[i] = name
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[ScoreboardHandler] Ошибка записи заголовков: %v", err)
	}

	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{r.Rank, sanitizeForExcel(r.Name), r.TotalScore, r.Solves, lastSolveCell(r)}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[ScoreboardHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[ScoreboardHandler] Ошибка при Flush: %v", err)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[ScoreboardHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
