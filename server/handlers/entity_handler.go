package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rationalize/resolution"
	apperrors "rationalize/server/errors"
	"rationalize/server/services"
)

// EntityHandler обработчики HTTP API ядра Entity Resolution
type EntityHandler struct {
	entityService *services.EntityService
	exportService *services.ExportService
}

// NewEntityHandler создает новый обработчик Entity Resolution
func NewEntityHandler(entityService *services.EntityService, exportService *services.ExportService) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
		exportService: exportService,
	}
}

// ErrorResponse структура ответа об ошибке
type ErrorResponse struct {
	Error string `json:"error"`
}

// sendError отправляет ошибку, сохраняя ее в контексте для журнала
func sendError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("необработанная ошибка", err)
	}
	_ = c.Error(appErr)
	c.JSON(appErr.StatusCode(), ErrorResponse{Error: appErr.UserMessage()})
}

// category извлекает и проверяет категорию из пути
func (h *EntityHandler) category(c *gin.Context) (resolution.EntityCategory, bool) {
	raw := c.Param("category")
	category, ok := resolution.ParseCategory(raw)
	if !ok {
		sendError(c, apperrors.NewValidationError(
			fmt.Sprintf("неизвестная категория сущности: %q", raw), nil))
		return "", false
	}
	return category, true
}

// ResolveResponse результат разрешения одного значения
type ResolveResponse struct {
	RawValue string `json:"raw_value"`
	Resolved string `json:"resolved"`
}

// HandleResolve разрешает одно сырое значение
// @Summary Разрешить значение в каноническую форму
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Param value query string true "Сырое значение"
// @Success 200 {object} ResolveResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/resolve [get]
func (h *EntityHandler) HandleResolve(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	value := c.Query("value")

	resolved, err := h.entityService.Resolve(category, value)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResolveResponse{RawValue: value, Resolved: resolved})
}

// BulkResolveRequest запрос массового разрешения
type BulkResolveRequest struct {
	Values []string `json:"values" binding:"required"`
}

// BulkResolveResponse результат массового разрешения: resolved[i]
// соответствует values[i]
type BulkResolveResponse struct {
	Values   []string `json:"values"`
	Resolved []string `json:"resolved"`
}

// HandleBulkResolve разрешает срез значений одним снимком маппингов
// @Summary Разрешить набор значений (колонночный вариант)
// @Tags entities
// @Accept json
// @Produce json
// @Param category path string true "Категория сущности"
// @Param request body BulkResolveRequest true "Сырые значения"
// @Success 200 {object} BulkResolveResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/resolve [post]
func (h *EntityHandler) HandleBulkResolve(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	var req BulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, apperrors.NewValidationError("некорректное тело запроса", err))
		return
	}

	resolved, err := h.entityService.ResolveAll(category, req.Values)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, BulkResolveResponse{Values: req.Values, Resolved: resolved})
}

// ExpandResponse каноническое значение и все его сырые варианты
type ExpandResponse struct {
	Canonical string   `json:"canonical"`
	Values    []string `json:"values"`
}

// HandleExpand расширяет каноническое значение до всех известных вариантов
// @Summary Все сырые варианты канонического значения
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Param canonical query string true "Каноническое значение"
// @Success 200 {object} ExpandResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/expand [get]
func (h *EntityHandler) HandleExpand(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	canonical := c.Query("canonical")
	if canonical == "" {
		sendError(c, apperrors.NewValidationError("параметр canonical не задан", nil))
		return
	}

	values, err := h.entityService.ExpandCanonical(category, canonical)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExpandResponse{Canonical: canonical, Values: values})
}

// HandlePendingReviews возвращает очередь ревью категории
// @Summary Очередь ревью (pending_review), по убыванию уверенности
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Success 200 {array} resolution.MappingEntry
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/pending [get]
func (h *EntityHandler) HandlePendingReviews(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	entries, err := h.entityService.PendingReviews(category)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// HandleMappings возвращает все маппинги категории
// @Summary Все маппинги категории независимо от статуса
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Success 200 {array} resolution.MappingEntry
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/mappings [get]
func (h *EntityHandler) HandleMappings(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	entries, err := h.entityService.Mappings(category)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// HandleValues возвращает канонические значения категории для фильтров
// @Summary Различные значения категории после разрешения
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Success 200 {array} string
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/values [get]
func (h *EntityHandler) HandleValues(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	values, err := h.entityService.DistinctCanonicalValues(category)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// HandleReverseMappings возвращает группировку raw-значений по канонической форме
// @Summary Обратные маппинги: canonical -> все его raw-значения
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Success 200 {object} map[string][]string
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/reverse [get]
func (h *EntityHandler) HandleReverseMappings(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	reverse, err := h.entityService.ReverseMappings(category)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, reverse)
}

// HandleSuggestions запускает движок предложений категории
// @Summary Предложения об объединении для категории
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Success 200 {array} resolution.Suggestion
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/suggestions [get]
func (h *EntityHandler) HandleSuggestions(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	suggestions, err := h.entityService.Suggest(c.Request.Context(), category)
	if err != nil {
		sendError(c, err)
		return
	}
	if suggestions == nil {
		suggestions = []resolution.Suggestion{}
	}
	c.JSON(http.StatusOK, suggestions)
}

// MergeRequestBody тело запроса объединения
type MergeRequestBody struct {
	Canonical   string   `json:"canonical_value" binding:"required"`
	RawValues   []string `json:"raw_values" binding:"required"`
	MatchMode   string   `json:"match_mode"`
	Confidence  float64  `json:"confidence"`
	PerformedBy string   `json:"performed_by"`
	Notes       string   `json:"notes"`
}

// HandleMerge объединяет сырые значения под канонической формой
// @Summary Объединить сырые значения (транзакционно, с аудитом)
// @Tags entities
// @Accept json
// @Produce json
// @Param category path string true "Категория сущности"
// @Param request body MergeRequestBody true "Параметры объединения"
// @Success 200 {object} resolution.AuditEntry
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/merge [post]
func (h *EntityHandler) HandleMerge(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	var body MergeRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, apperrors.NewValidationError("некорректное тело запроса", err))
		return
	}

	audit, err := h.entityService.Merge(resolution.MergeRequest{
		Category:    category,
		Canonical:   body.Canonical,
		RawValues:   body.RawValues,
		MatchMode:   body.MatchMode,
		Source:      resolution.SourceManual,
		Confidence:  body.Confidence,
		PerformedBy: orDefault(body.PerformedBy, "admin"),
		Notes:       body.Notes,
	})
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// RevertRequestBody тело запроса отката
type RevertRequestBody struct {
	PerformedBy string `json:"performed_by"`
}

// RevertResponse результат отката
type RevertResponse struct {
	AuditID  int64 `json:"audit_id"`
	Reverted bool  `json:"reverted"`
}

// HandleRevert откатывает объединение по id записи аудита
// @Summary Откатить объединение
// @Description Возвращает reverted=false, если запись аудита не найдена
// @Description или уже откачена; состояние при этом не меняется
// @Tags entities
// @Accept json
// @Produce json
// @Param id path int true "ID записи аудита"
// @Param request body RevertRequestBody false "Кто выполняет откат"
// @Success 200 {object} RevertResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/audit/{id}/revert [post]
func (h *EntityHandler) HandleRevert(c *gin.Context) {
	auditID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, apperrors.NewValidationError("некорректный id записи аудита", err))
		return
	}

	var body RevertRequestBody
	_ = c.ShouldBindJSON(&body) // тело опционально

	reverted, err := h.entityService.Revert(auditID, orDefault(body.PerformedBy, "admin"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, RevertResponse{AuditID: auditID, Reverted: reverted})
}

// HandleAuditLog возвращает журнал операций категории
// @Summary Журнал merge/revert операций категории
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Param limit query int false "Максимум записей (по умолчанию 100)"
// @Success 200 {array} resolution.AuditEntry
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/audit [get]
func (h *EntityHandler) HandleAuditLog(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.entityService.AuditLog(category, limit)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// HandleAutoResolve запускает пакетное автоматическое разрешение
// @Summary Запустить авторазрешение по всем категориям
// @Tags entities
// @Produce json
// @Success 200 {object} resolution.Stats
// @Failure 500 {object} ErrorResponse
// @Router /api/entities/auto-resolve [post]
func (h *EntityHandler) HandleAutoResolve(c *gin.Context) {
	stats, err := h.entityService.AutoResolve(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleExport выгружает маппинги категории в JSON/CSV/Excel
// @Summary Экспорт маппингов категории
// @Tags entities
// @Produce json
// @Param category path string true "Категория сущности"
// @Param format query string false "Формат: json, csv или excel"
// @Param pending query bool false "Только очередь ревью"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Router /api/entities/{category}/export [get]
func (h *EntityHandler) HandleExport(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	format, ok := services.ParseExportFormat(c.Query("format"))
	if !ok {
		sendError(c, apperrors.NewValidationError(
			fmt.Sprintf("неизвестный формат экспорта: %q", c.Query("format")), nil))
		return
	}

	c.Header("Content-Type", format.ContentType())
	pendingOnly, _ := strconv.ParseBool(c.DefaultQuery("pending", "false"))

	var err error
	if pendingOnly {
		err = h.exportService.ExportPendingReviews(c.Writer, category, format)
	} else {
		err = h.exportService.ExportMappings(c.Writer, category, format)
	}
	if err != nil {
		_ = c.Error(err)
	}
}

// orDefault возвращает fallback, если значение пустое
func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
