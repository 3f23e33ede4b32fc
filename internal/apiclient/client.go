// Package apiclient calls the gateway's analysis and summary endpoints.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"photocal/internal/models"
)

const (
	defaultAnalyzeError = "Ошибка анализа фото"
	defaultSummaryError = "Ошибка получения итогов дня"

	// FallbackName names an analysis whose reply could not be parsed.
	FallbackName = "Определено по фото"
)

// Error carries the message shown to the user. Cause, when set, is the
// underlying transport or decoding failure.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New returns a client for the gateway at baseURL. Requests carry no
// timeout of their own; bound them through the context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
	Error   string `json:"error"`
}

type analyzeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Description string `json:"description"`
}

type summaryRequest struct {
	Meals    []models.FoodEntry  `json:"meals"`
	UserInfo *models.UserProfile `json:"userInfo,omitempty"`
}

// AnalyzeFood sends a photo for nutrient estimation. A reply that is not a
// JSON object still succeeds: the text becomes the description of a record
// with zero nutrients.
func (c *Client) AnalyzeFood(ctx context.Context, imageBase64, description string) (*models.AnalysisResult, error) {
	data, err := c.post(ctx, "/analyze-food", analyzeRequest{
		ImageBase64: imageBase64,
		Description: description,
	}, defaultAnalyzeError)
	if err != nil {
		return nil, err
	}

	if res, ok := ParseAnalysis(data); ok {
		return res, nil
	}
	return &models.AnalysisResult{
		Name:        FallbackName,
		Description: data,
		Raw:         data,
	}, nil
}

// GetDailySummary returns the free-text review of meals. Photos are not
// sent.
func (c *Client) GetDailySummary(ctx context.Context, meals []models.FoodEntry, profile *models.UserProfile) (string, error) {
	stripped := make([]models.FoodEntry, len(meals))
	for i, m := range meals {
		m.Photo = ""
		stripped[i] = m
	}

	return c.post(ctx, "/daily-summary", summaryRequest{
		Meals:    stripped,
		UserInfo: profile,
	}, defaultSummaryError)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, defaultMsg string) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Message: defaultMsg, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Message: defaultMsg, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Message: defaultMsg, Cause: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", &Error{Status: resp.StatusCode, Message: defaultMsg, Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = defaultMsg
		}
		return "", &Error{Status: resp.StatusCode, Message: msg}
	}
	return env.Data, nil
}

// ParseAnalysis decodes a model reply into a result. Markdown code fences
// around the object are tolerated, and numeric fields may be quoted.
func ParseAnalysis(data string) (*models.AnalysisResult, bool) {
	text := stripFences(strings.TrimSpace(data))
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}

	var raw struct {
		Name        string     `json:"name"`
		Calories    flexNumber `json:"calories"`
		Protein     flexNumber `json:"protein"`
		Fat         flexNumber `json:"fat"`
		Carbs       flexNumber `json:"carbs"`
		Description string     `json:"description"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}

	return &models.AnalysisResult{
		Name:        raw.Name,
		Calories:    float64(raw.Calories),
		Protein:     float64(raw.Protein),
		Fat:         float64(raw.Fat),
		Carbs:       float64(raw.Carbs),
		Description: raw.Description,
	}, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// flexNumber accepts 12, 12.5 and "12.5". Unparseable strings decode as 0.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}
