package buildsbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"buildsbot/internal/model"
)

func TestFormatBuildDetails(t *testing.T) {
	free := &model.Build{Title: "Dark City", Author: "bob", Description: "night build", Category: model.CategoryFree}

	text := formatBuildDetails(free, true, "")
	assert.Contains(t, text, "Dark City")
	assert.Contains(t, text, "Бесплатная сборка")
	assert.Contains(t, text, "✅ <b>Готово к скачиванию</b>")

	text = formatBuildDetails(free, false, "23ч 59м")
	assert.Contains(t, text, "⏳ <b>Вы сможете скачать эту сборку через:</b> 23ч 59м")
	assert.NotContains(t, text, "Готово к скачиванию")

	paid := &model.Build{Title: "Neo", Author: "kate", Category: model.CategoryPaid, Price: 500, Contact: "@seller"}
	text = formatBuildDetails(paid, true, "")
	assert.Contains(t, text, "Платная сборка")
	assert.Contains(t, text, "500 рублей")
	assert.Contains(t, text, "@seller")
	assert.Contains(t, text, "Для покупки свяжитесь с продавцом")
}

func TestFormatWelcomeCounts(t *testing.T) {
	text := formatWelcome(12, 34, 5)
	assert.Contains(t, text, "Пользователей: 12")
	assert.Contains(t, text, "Сборок скачано: 34")
	assert.Contains(t, text, "Доступных сборок: 5")
}

func TestFormatBroadcastReportPercent(t *testing.T) {
	when := time.Date(2025, 7, 3, 15, 4, 5, 0, time.UTC)
	text := formatBroadcastReport(5, 3, 1, 1, when)
	assert.Contains(t, text, "Процент доставки: 60.0%")
	assert.Contains(t, text, "15:04:05")

	text = formatBroadcastReport(0, 0, 0, 0, when)
	assert.Contains(t, text, "Процент доставки: 0.0%")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "▫️▫️▫️▫️▫️▫️▫️▫️▫️▫️ 0%", progressBar(0, 10))
	assert.Equal(t, "█████▫️▫️▫️▫️▫️ 50%", progressBar(5, 10))
	assert.Equal(t, "██████████ 100%", progressBar(10, 10))
	assert.Equal(t, "▫️▫️▫️▫️▫️▫️▫️▫️▫️▫️ 0%", progressBar(0, 0))
}

func TestTruncateHelpers(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Сборка", truncate("Сборка на модерации", 6))
	assert.Equal(t, "abc...", truncateEllipsis("abcdef", 3))
	assert.Equal(t, "abc", truncateEllipsis("abc", 3))
}

func TestFormatStats(t *testing.T) {
	st := model.Stats{
		TotalUsers:      100,
		TotalDownloads:  250,
		BuildsAdded:     30,
		FreeBuildsCount: 25,
		PaidBuildsCount: 5,
		TotalResets:     4,
	}
	text := formatStats(st, 7)
	assert.Contains(t, text, "Всего пользователей: 100")
	assert.Contains(t, text, "Активных сегодня: 7")
	assert.Contains(t, text, "Бесплатных: 25")
	assert.Contains(t, text, "Платных: 5")
	assert.Contains(t, text, "Примерный доход: 400 руб.")
}

func TestFormatAdvertPreviewTruncates(t *testing.T) {
	long := make([]rune, 350)
	for i := range long {
		long[i] = 'x'
	}
	when := time.Date(2025, 7, 3, 12, 30, 0, 0, time.UTC)
	text := formatAdvertPreview(string(long), when)
	assert.Contains(t, text, "...")
	assert.Contains(t, text, "03.07.2025 12:30")
}
