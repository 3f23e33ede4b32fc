package gpt

import (
	"fmt"
	"strings"

	"photocal/internal/models"
)

const (
	analyzeSystemPrompt = `Ты эксперт по анализу питания. Проанализируй фото еды и предоставь информацию о БЖУ и калорийности. Формат ответа должен быть JSON с полями: {"name": "Название блюда", "calories": XXX, "protein": XX, "fat": XX, "carbs": XX, "description": "Краткое описание"}`

	summarySystemPrompt = `Ты эксперт-диетолог. Проанализируй дневник питания пользователя и дай КРАТКИЕ, ЧЕТКИЕ рекомендации. В каждом пункте пиши не более 2-3 предложений, будь максимально конкретным. Ответ структурируй так: 1) Общая оценка рациона (1-2 предложения), 2) Анализ БЖУ и калорийности (2-3 предложения), 3) Рекомендации по улучшению (2-3 конкретных совета), 4) Советы на завтра (1-2 предложения). Основывай рекомендации на цели пользователя (похудение/набор массы/поддержание формы) и его физических параметрах.`
)

// AnalyzePrompt is the text part sent alongside the photo.
func AnalyzePrompt(description string) string {
	return strings.TrimSpace("Проанализируй это блюдо. " + description)
}

// ImageURL turns a bare base64 JPEG payload into a data URL. Inputs that
// already are data URLs are passed through.
func ImageURL(imageBase64 string) string {
	if strings.HasPrefix(imageBase64, "data:") {
		return imageBase64
	}
	return "data:image/jpeg;base64," + imageBase64
}

// SummaryPrompt lists every meal with its nutrients, followed by the day
// totals rounded to one decimal.
func SummaryPrompt(meals []models.FoodEntry, info *models.UserProfile) string {
	var b strings.Builder

	b.WriteString(userInfoText(info))
	b.WriteString("\n\nДневник питания за день:\n\n")

	var total models.Nutrients
	for i, meal := range meals {
		var n models.Nutrients
		if meal.Nutrients != nil {
			n = *meal.Nutrients
		}
		total = total.Add(n)

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Прием пищи %d: %s\n", i+1, orDefault(meal.Name, "Без названия"))
		fmt.Fprintf(&b, "Тип: %s\n", meal.MealType.Label())
		fmt.Fprintf(&b, "Время: %s\n", mealTime(meal))
		fmt.Fprintf(&b, "Калории: %s ккал\n", formatNumber(n.Calories))
		fmt.Fprintf(&b, "Белки: %s г\n", formatNumber(n.Protein))
		fmt.Fprintf(&b, "Жиры: %s г\n", formatNumber(n.Fat))
		fmt.Fprintf(&b, "Углеводы: %s г\n", formatNumber(n.Carbs))
		fmt.Fprintf(&b, "Описание: %s", orDefault(meal.Description, "Нет описания"))
	}

	b.WriteString("\n\n\nИтого за день:\n")
	fmt.Fprintf(&b, "- Калории: %.1f ккал\n", total.Calories)
	fmt.Fprintf(&b, "- Белки: %.1f г\n", total.Protein)
	fmt.Fprintf(&b, "- Жиры: %.1f г\n", total.Fat)
	fmt.Fprintf(&b, "- Углеводы: %.1f г\n", total.Carbs)
	b.WriteString("\n\nПроанализируй мой рацион и дай рекомендации.")

	return b.String()
}

func userInfoText(info *models.UserProfile) string {
	if info == nil {
		return "Информация о пользователе отсутствует"
	}
	return fmt.Sprintf(
		"Информация о пользователе: возраст - %s, пол - %s, вес - %s кг, рост - %s см, цель - %s",
		formatNumber(info.Age), info.Gender.Label(), formatNumber(info.Weight), formatNumber(info.Height), info.Goal.Label(),
	)
}

func mealTime(meal models.FoodEntry) string {
	if meal.Timestamp.IsZero() {
		return "Не указано"
	}
	return meal.Timestamp.Format("15:04:05")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// formatNumber prints whole numbers without a fraction and others with up
// to two decimals.
func formatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
