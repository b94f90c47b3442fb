package buildsbot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildsbot/internal/model"
)

func sampleBuilds(n int) []model.Build {
	out := make([]model.Build, n)
	for i := range out {
		out[i] = model.Build{
			BuildID:      fmt.Sprintf("17480000%02d", i),
			Title:        fmt.Sprintf("Build %d", i),
			Author:       "author",
			Category:     model.CategoryFree,
			DownloadLink: "https://example.com/b.zip",
		}
	}
	return out
}

func TestMainKeyboardAdminRow(t *testing.T) {
	kb := mainKeyboard(false)
	require.Len(t, kb.ReplyKeyboard, 4)

	kb = mainKeyboard(true)
	require.Len(t, kb.ReplyKeyboard, 5)
	assert.Equal(t, btnAdminPanel, kb.ReplyKeyboard[4][0].Text)
}

func TestBuildListKeyboardPagination(t *testing.T) {
	builds := sampleBuilds(7)

	kb := buildListKeyboard(builds, 0)
	require.Len(t, kb.InlineKeyboard, 6) // 5 builds + nav
	nav := kb.InlineKeyboard[5]
	require.Len(t, nav, 1)
	assert.Equal(t, "Вперед ▶️", nav[0].Text)
	assert.Equal(t, "1", nav[0].Data)
	assert.Equal(t, cbBuildsPage, nav[0].Unique)

	kb = buildListKeyboard(builds, 1)
	require.Len(t, kb.InlineKeyboard, 3) // 2 builds + nav
	nav = kb.InlineKeyboard[2]
	require.Len(t, nav, 1)
	assert.Equal(t, "◀️ Назад", nav[0].Text)
	assert.Equal(t, "0", nav[0].Data)
}

func TestBuildListKeyboardPaidLabel(t *testing.T) {
	builds := sampleBuilds(1)
	builds[0].Category = model.CategoryPaid
	builds[0].Price = 300

	kb := buildListKeyboard(builds, 0)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "💰 Build 0 - 300 руб.", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, builds[0].BuildID, kb.InlineKeyboard[0][0].Data)
}

func TestBuildDetailsKeyboardFree(t *testing.T) {
	b := &model.Build{Category: model.CategoryFree, DownloadLink: "https://example.com/b.zip"}

	kb := buildDetailsKeyboard(b, true, 1000)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "⬇️ Скачать сборку", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, b.DownloadLink, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, cbBackToBuilds, kb.InlineKeyboard[1][0].Unique)
}

func TestBuildDetailsKeyboardCooldown(t *testing.T) {
	b := &model.Build{Category: model.CategoryFree}

	kb := buildDetailsKeyboard(b, false, 1000)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, cbResetPayment, kb.InlineKeyboard[0][0].Unique)
}

func TestBuildDetailsKeyboardPaid(t *testing.T) {
	b := &model.Build{Category: model.CategoryPaid, Price: 500, Contact: "@seller"}

	kb := buildDetailsKeyboard(b, true, 1000)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "💳 Купить за 500 руб.", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "tg://user?id=1000", kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/seller", kb.InlineKeyboard[1][0].URL)
}

func TestPendingKeyboardCapsAtPageSize(t *testing.T) {
	pending := make([]model.PendingBuild, 12)
	for i := range pending {
		pending[i] = model.PendingBuild{Build: model.Build{
			BuildID: fmt.Sprintf("id%d", i),
			Title:   "Very Long Build Title Exceeding Limit",
			Author:  "longauthorname",
		}}
	}

	kb := pendingKeyboard(pending)
	require.Len(t, kb.InlineKeyboard, 11) // 10 entries + back
	assert.Equal(t, "Very Long Build (longauthor)", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, cbAdminPanel, kb.InlineKeyboard[10][0].Unique)
}

func TestPageNavRowSinglePage(t *testing.T) {
	assert.Nil(t, pageNavRow(0, 1, cbBuildsPage))
	assert.Nil(t, pageNavRow(0, 0, cbBuildsPage))
}

func TestCategoryKeyboardHidesPaidForDelegated(t *testing.T) {
	kb := categoryKeyboard(true)
	require.Len(t, kb.InlineKeyboard[0], 2)

	kb = categoryKeyboard(false)
	require.Len(t, kb.InlineKeyboard[0], 1)
	assert.Equal(t, string(model.CategoryFree), kb.InlineKeyboard[0][0].Data)
}
