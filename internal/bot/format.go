package bot

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"photocal/internal/diary"
	"photocal/internal/gauge"
	"photocal/internal/models"
	"photocal/internal/nutrition"
)

const barWidth = 10

var levelEmoji = map[string]string{
	gauge.Danger:  "🔴",
	gauge.Warning: "🟠",
	gauge.Info:    "🔵",
	gauge.Success: "🟢",
}

// textGauge renders one nutrient against its target as a line of text.
func textGauge(label string, value float64, target int, unit string) string {
	pct := nutrition.Percent(value, float64(target))
	filled := int(math.Round(pct / 100 * barWidth))

	return fmt.Sprintf("%s %s %s%s %s / %d %s (%d%%)",
		levelEmoji[gauge.DefaultLevel(pct)],
		label,
		strings.Repeat("▰", filled),
		strings.Repeat("▱", barWidth-filled),
		formatAmount(value), target, unit,
		int(math.Round(pct)),
	)
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// formatHome renders today's diary view.
func formatHome(day diary.Day) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>Дневник питания</b> · %s\n", html.EscapeString(day.Date))
	if p := day.Profile; p != nil {
		fmt.Fprintf(&b, "Цель: %s", p.Goal.Label())
		if bmi := nutrition.CalculateBMI(p.Height, p.Weight); bmi != nil {
			fmt.Fprintf(&b, " · ИМТ %.1f (%s)", bmi.Value, bmi.Category)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(textGauge("Калории", day.Totals.Calories, day.Targets.Calories, "ккал") + "\n")
	b.WriteString(textGauge("Белки", day.Totals.Protein, day.Targets.Protein, "г") + "\n")
	b.WriteString(textGauge("Жиры", day.Totals.Fat, day.Targets.Fat, "г") + "\n")
	b.WriteString(textGauge("Углеводы", day.Totals.Carbs, day.Targets.Carbs, "г") + "\n")

	b.WriteString("\n<b>Приёмы пищи</b>\n")
	if len(day.Entries) == 0 {
		b.WriteString("Пока ничего не добавлено. Нажмите «Добавить приём пищи».")
		return b.String()
	}
	for _, e := range day.Entries {
		b.WriteString(formatEntry(e) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEntry(e models.FoodEntry) string {
	line := fmt.Sprintf("%s %s: %s", e.Timestamp.Format("15:04"), e.MealType.Label(), html.EscapeString(e.Name))
	if e.Nutrients != nil {
		line += fmt.Sprintf(" (%s ккал, Б %s / Ж %s / У %s)",
			formatAmount(e.Nutrients.Calories),
			formatAmount(e.Nutrients.Protein),
			formatAmount(e.Nutrients.Fat),
			formatAmount(e.Nutrients.Carbs))
	}
	if e.Photo != "" {
		line += " 📷"
	}
	return line
}

var summarySections = map[string]string{
	"1": "Общая оценка рациона",
	"2": "Анализ БЖУ и калорийности",
	"3": "Рекомендации по улучшению",
	"4": "Советы на завтра",
}

var sectionMarker = regexp.MustCompile(`(?m)^[ \t]*([1-4])[.)][ \t]*(.*)$`)

// formatSummary escapes the model's review and turns its numbered points
// into titled sections.
func formatSummary(text string) string {
	escaped := html.EscapeString(strings.TrimSpace(text))
	body := sectionMarker.ReplaceAllStringFunc(escaped, func(line string) string {
		m := sectionMarker.FindStringSubmatch(line)
		return fmt.Sprintf("<b>%s</b>\n%s", summarySections[m[1]], strings.TrimSpace(m[2]))
	})
	return "<b>Анализ вашего питания</b>\n\n" + body
}
