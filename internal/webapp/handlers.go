// Package webapp serves the JSON API used by the Telegram Mini App front-end.
package webapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"photocal/internal/diary"
	"photocal/internal/gateway"
	"photocal/internal/gauge"
	"photocal/internal/imaging"
	"photocal/internal/models"
	"photocal/internal/nutrition"
	"photocal/pkg/logger"
)

const maxBodyBytes = 10 << 20

type Options struct {
	BotToken       string
	InitDataMaxAge time.Duration
	MaxPhotoKB     int
}

type Handler struct {
	diary      *diary.Repository
	jwt        *JWTManager
	compressor *imaging.Compressor
	opts       Options
	logger     *logger.Logger
	now        func() time.Time
}

func New(repo *diary.Repository, jwt *JWTManager, compressor *imaging.Compressor, opts Options, l *logger.Logger) *Handler {
	if opts.MaxPhotoKB <= 0 {
		opts.MaxPhotoKB = imaging.DefaultMaxSizeKB
	}
	if compressor == nil {
		compressor = imaging.NewCompressor(imaging.DefaultOptions())
	}
	return &Handler{
		diary:      repo,
		jwt:        jwt,
		compressor: compressor,
		opts:       opts,
		logger:     l.Named("webapp"),
		now:        time.Now,
	}
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(gateway.CORS)

	r.Post("/auth", h.handleAuth)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.jwt))

		r.Get("/profile", h.handleGetProfile)
		r.Put("/profile", h.handlePutProfile)
		r.Get("/targets", h.handleTargets)

		r.Post("/diary", h.handleAddEntry)
		r.Get("/diary/{date}", h.handleDay)
		r.Delete("/diary/{date}/{id}", h.handleDeleteEntry)
		r.Post("/diary/{date}/end", h.handleEndDay)

		r.Get("/gauges/{nutrient}.svg", h.handleGauge)
	})
	return r
}

type authRequest struct {
	InitData string `json:"initData" validate:"required"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      TelegramUser `json:"user"`
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeBody(w, r, &req); err != nil || models.Validator().Struct(req) != nil {
		writeError(w, http.StatusBadRequest, "initData is required")
		return
	}

	data, err := ValidateInitData(req.InitData, h.opts.BotToken, h.opts.InitDataMaxAge, h.now())
	if err != nil {
		h.logger.Warnw("Rejected init data", "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, expires, err := h.jwt.Generate(data.User)
	if err != nil {
		h.logger.Errorw("Failed to issue session", "user_id", data.User.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	h.logger.Infow("Mini App session issued", "user_id", data.User.ID)
	writeData(w, http.StatusOK, authResponse{Token: token, ExpiresAt: expires, User: data.User})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p := h.diary.Profile(r.Context(), ownerFrom(r.Context()))
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeData(w, http.StatusOK, p)
}

func (h *Handler) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p models.UserProfile
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.diary.SaveProfile(r.Context(), ownerFrom(r.Context()), p)
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Response: gateway.Response{Success: false, Error: "validation failed"},
			Fields:   verrs,
		})
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeData(w, http.StatusOK, p)
	}
}

type targetsResponse struct {
	Targets nutrition.Targets `json:"targets"`
	BMI     *nutrition.BMI    `json:"bmi"`
}

func (h *Handler) handleTargets(w http.ResponseWriter, r *http.Request) {
	p := h.diary.Profile(r.Context(), ownerFrom(r.Context()))
	resp := targetsResponse{Targets: nutrition.Calculate(p)}
	if p != nil {
		resp.BMI = nutrition.CalculateBMI(p.Height, p.Weight)
	}
	writeData(w, http.StatusOK, resp)
}

func (h *Handler) handleDay(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, h.diary.Day(r.Context(), ownerFrom(r.Context()), date))
}

type entryRequest struct {
	MealType    models.MealType `json:"mealType"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	// Photo is a data URL of any supported image format.
	Photo     string            `json:"photo,omitempty"`
	Nutrients *models.Nutrients `json:"nutrients,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

func (h *Handler) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := models.FoodEntry{
		MealType:    req.MealType,
		Name:        req.Name,
		Description: req.Description,
		Nutrients:   req.Nutrients,
	}
	if req.Timestamp != nil {
		e.Timestamp = *req.Timestamp
	}

	if req.Photo != "" {
		_, data, err := imaging.ParseDataURL(req.Photo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "photo must be a base64 data URL")
			return
		}
		photo, ok := h.compressor.CompressOrOriginal(data)
		if !ok {
			h.logger.Warnw("Photo compression failed, keeping original", "bytes", len(data))
		}
		if imaging.IsDataURLTooBig(photo, h.opts.MaxPhotoKB) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		e.Photo = photo
	}

	saved, err := h.diary.AddEntry(r.Context(), ownerFrom(r.Context()), e)
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Response: gateway.Response{Success: false, Error: "validation failed"},
			Fields:   verrs,
		})
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeData(w, http.StatusCreated, saved)
	}
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	found, err := h.diary.DeleteEntry(r.Context(), ownerFrom(r.Context()), date, id)
	switch {
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case !found:
		writeError(w, http.StatusNotFound, "entry not found")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleEndDay(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := h.diary.EndDay(r.Context(), ownerFrom(r.Context()), date); err != nil {
		h.logger.Errorw("Failed to end day", "date", date, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var nutrientProgress = map[string]func(nutrition.Progress) float64{
	"calories": func(p nutrition.Progress) float64 { return p.Calories },
	"protein":  func(p nutrition.Progress) float64 { return p.Protein },
	"fat":      func(p nutrition.Progress) float64 { return p.Fat },
	"carbs":    func(p nutrition.Progress) float64 { return p.Carbs },
}

// handleGauge renders the day's progress for one nutrient. Query parameters:
// date (default today), from (animate from this percentage) and size.
func (h *Handler) handleGauge(w http.ResponseWriter, r *http.Request) {
	pick, ok := nutrientProgress[chi.URLParam(r, "nutrient")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown nutrient")
		return
	}

	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = models.DateKey(h.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	opts := gauge.RenderOptions{Size: q.Get("size")}
	if from := q.Get("from"); from != "" {
		v, err := strconv.ParseFloat(from, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be a number")
			return
		}
		opts.AnimateFrom = &v
	}

	day := h.diary.Day(r.Context(), ownerFrom(r.Context()), date)
	svg := gauge.RenderSVG(pick(day.Progress), gauge.DefaultSpec(), opts)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(svg))
}

func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

type validationResponse struct {
	gateway.Response
	Fields models.ValidationErrors `json:"fields"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeData(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, gateway.Response{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, gateway.Response{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
