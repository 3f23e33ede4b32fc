package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"photocal/internal/models"
)

type capturedRequest struct {
	path    string
	referer string
	title   string
	auth    string
	body    map[string]interface{}
}

func newFakeOpenRouter(t *testing.T, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.referer = r.Header.Get("HTTP-Referer")
		captured.title = r.Header.Get("X-Title")
		captured.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "gen-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   DefaultModel,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": reply},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestAnalyzeFood(t *testing.T) {
	srv, got := newFakeOpenRouter(t, `{"name":"Салат","calories":120}`)
	c := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Referer: "https://photocal.ai",
		Title:   "PhotocAI Nutrition Assistant",
	})

	reply, err := c.AnalyzeFood(context.Background(), "QUJD", "с курицей")
	if err != nil {
		t.Fatalf("AnalyzeFood() error = %v", err)
	}
	if reply != `{"name":"Салат","calories":120}` {
		t.Errorf("AnalyzeFood() = %q", reply)
	}

	if got.path != "/chat/completions" {
		t.Errorf("path = %q", got.path)
	}
	if got.referer != "https://photocal.ai" || got.title != "PhotocAI Nutrition Assistant" {
		t.Errorf("headers = %q / %q", got.referer, got.title)
	}
	if got.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.body["model"] != DefaultModel {
		t.Errorf("model = %v", got.body["model"])
	}
	if got.body["max_tokens"] != float64(500) {
		t.Errorf("max_tokens = %v", got.body["max_tokens"])
	}

	messages := got.body["messages"].([]interface{})
	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	text := parts[0].(map[string]interface{})["text"]
	if text != "Проанализируй это блюдо. с курицей" {
		t.Errorf("text part = %v", text)
	}
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"]
	if image != "data:image/jpeg;base64,QUJD" {
		t.Errorf("image url = %v", image)
	}
}

func TestSummarizeDay(t *testing.T) {
	srv, got := newFakeOpenRouter(t, "1) Хорошо")
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}).WithModel("openai/gpt-4o-mini")

	meals := []models.FoodEntry{{MealType: models.MealLunch, Name: "Суп"}}
	reply, err := c.SummarizeDay(context.Background(), meals, nil)
	if err != nil {
		t.Fatalf("SummarizeDay() error = %v", err)
	}
	if reply != "1) Хорошо" {
		t.Errorf("SummarizeDay() = %q", reply)
	}
	if got.body["model"] != "openai/gpt-4o-mini" {
		t.Errorf("model = %v", got.body["model"])
	}
	if got.body["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v", got.body["max_tokens"])
	}
}

func TestClientWithoutKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	if _, err := c.AnalyzeFood(context.Background(), "QUJD", ""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("AnalyzeFood() error = %v, want ErrNoAPIKey", err)
	}
	if _, err := c.SummarizeDay(context.Background(), nil, nil); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("SummarizeDay() error = %v, want ErrNoAPIKey", err)
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL("QUJD"); got != "data:image/jpeg;base64,QUJD" {
		t.Errorf("ImageURL(bare) = %q", got)
	}
	if got := ImageURL("data:image/png;base64,QUJD"); got != "data:image/png;base64,QUJD" {
		t.Errorf("ImageURL(data url) = %q", got)
	}
}

func TestSummaryPrompt(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 15, 0, 0, time.UTC)
	meals := []models.FoodEntry{
		{
			Timestamp:   ts,
			MealType:    models.MealBreakfast,
			Name:        "Каша",
			Description: "овсяная",
			Nutrients:   &models.Nutrients{Calories: 310.2, Protein: 10, Fat: 5.5, Carbs: 54},
		},
		{MealType: models.MealSnack, Nutrients: &models.Nutrients{Calories: 95.1, Protein: 0.5, Fat: 0.3, Carbs: 25}},
	}
	profile := &models.UserProfile{Gender: models.GenderFemale, Age: 28, Height: 165, Weight: 60, Goal: models.GoalWeightLoss}

	prompt := SummaryPrompt(meals, profile)

	for _, want := range []string{
		"Информация о пользователе: возраст - 28, пол - Женский, вес - 60 кг, рост - 165 см, цель - Похудение",
		"Прием пищи 1: Каша\nТип: Завтрак\nВремя: 08:15:00\nКалории: 310.2 ккал",
		"Прием пищи 2: Без названия",
		"Описание: Нет описания",
		"- Калории: 405.3 ккал",
		"- Белки: 10.5 г",
		"- Жиры: 5.8 г",
		"- Углеводы: 79.0 г",
		"Проанализируй мой рацион и дай рекомендации.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}

	if !strings.HasPrefix(SummaryPrompt(nil, nil), "Информация о пользователе отсутствует") {
		t.Error("prompt without profile does not say so")
	}
}
