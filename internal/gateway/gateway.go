// Package gateway exposes the food-photo analysis and daily-summary
// endpoints that front the LLM provider.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"photocal/internal/models"
	"photocal/pkg/logger"
)

const maxBodyBytes = 10 << 20

const (
	msgNoImage        = "Не предоставлено изображение"
	msgNoMeals        = "Не предоставлены данные о приемах пищи"
	msgAnalyzeFailed  = "Ошибка при анализе фото"
	msgSummaryFailed  = "Ошибка при получении итогов дня"
	msgBadRequestBody = "Некорректное тело запроса"
)

// Analyst produces the raw model replies the endpoints return.
type Analyst interface {
	AnalyzeFood(ctx context.Context, imageBase64, description string) (string, error)
	SummarizeDay(ctx context.Context, meals []models.FoodEntry, info *models.UserProfile) (string, error)
}

// Response is the envelope of every endpoint.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type AnalyzeRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
	Description string `json:"description,omitempty"`
}

type SummaryRequest struct {
	Meals    []models.FoodEntry  `json:"meals" validate:"required,min=1"`
	UserInfo *models.UserProfile `json:"userInfo,omitempty" validate:"-"`
}

type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type Index struct {
	Message   string     `json:"message"`
	Endpoints []Endpoint `json:"endpoints"`
}

var index = Index{
	Message: "OpenRouter AI API для приложения питания",
	Endpoints: []Endpoint{
		{Path: "/analyze-food", Method: http.MethodPost, Description: "Анализ фото еды"},
		{Path: "/daily-summary", Method: http.MethodPost, Description: "Итоги дня на основе приемов пищи"},
	},
}

type Handler struct {
	analyst Analyst
	logger  *logger.Logger
	metrics *metrics
}

// New registers the gateway's collectors on reg; pass nil to skip metrics.
func New(analyst Analyst, l *logger.Logger, reg prometheus.Registerer) *Handler {
	return &Handler{
		analyst: analyst,
		logger:  l.Named("gateway"),
		metrics: newMetrics(reg),
	}
}

// Routes returns the gateway router. Unknown paths and methods answer with
// the endpoint index.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(h.requestID)

	r.Post("/analyze-food", h.instrument("analyze-food", h.handleAnalyzeFood))
	r.Post("/daily-summary", h.instrument("daily-summary", h.handleDailySummary))

	r.NotFound(h.handleIndex)
	r.MethodNotAllowed(h.handleIndex)
	return r
}

// CORS allows any origin and answers preflight requests directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, index)
}

func (h *Handler) handleAnalyzeFood(w http.ResponseWriter, r *http.Request) int {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		return h.fail(w, r, http.StatusBadRequest, msgBadRequestBody, err)
	}
	if err := models.Validator().Struct(req); err != nil {
		return h.fail(w, r, http.StatusBadRequest, msgNoImage, err)
	}

	reply, err := h.analyst.AnalyzeFood(r.Context(), req.ImageBase64, req.Description)
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, errorMessage(err, msgAnalyzeFailed), err)
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: reply})
	return http.StatusOK
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) int {
	var req SummaryRequest
	if err := decodeBody(w, r, &req); err != nil {
		return h.fail(w, r, http.StatusBadRequest, msgBadRequestBody, err)
	}
	if err := models.Validator().Struct(req); err != nil {
		return h.fail(w, r, http.StatusBadRequest, msgNoMeals, err)
	}

	reply, err := h.analyst.SummarizeDay(r.Context(), req.Meals, req.UserInfo)
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, errorMessage(err, msgSummaryFailed), err)
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: reply})
	return http.StatusOK
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) int {
	log := h.logger.Warnw
	if status >= http.StatusInternalServerError {
		log = h.logger.Errorw
	}
	log("Request failed",
		"path", r.URL.Path,
		"status", status,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)
	writeJSON(w, status, Response{Success: false, Error: msg})
	return status
}

func (h *Handler) instrument(endpoint string, fn func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := fn(w, r)
		h.metrics.observe(endpoint, status, time.Since(start))
		h.logger.Infow("Request handled",
			"endpoint", endpoint,
			"status", status,
			"request_id", requestIDFrom(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
