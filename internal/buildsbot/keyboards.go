package buildsbot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/telegram/keyboard"
	"buildsbot/internal/admins"
	"buildsbot/internal/catalog"
	"buildsbot/internal/model"
)

// Callback uniques. Payloads carry build ids, admin ids or page numbers.
const (
	cbAdminPanel    = "admin_panel"
	cbMainMenu      = "main_menu"
	cbAddBuild      = "add_build"
	cbStats         = "stats"
	cbAdminsList    = "admins_list"
	cbResetLimit    = "reset_limit"
	cbPendingBuilds = "pending_builds"
	cbAllBuilds     = "all_builds"
	cbDeleteBuild   = "delete_build"
	cbAddAdmin      = "add_admin"
	cbRemoveAdmin   = "remove_admin"

	cbCategory = "category" // payload: free | paid

	cbBuild        = "build"       // payload: build id
	cbBuildsPage   = "builds_page" // payload: page
	cbBackToBuilds = "back_to_builds"
	cbResetPayment = "reset_limit_payment"

	cbDeletePick    = "delete_pick"    // payload: build id
	cbConfirmDelete = "confirm_delete" // payload: build id
	cbDeletePage    = "delete_page"    // payload: page

	cbRemoveAdminPick = "remove_admin_pick" // payload: admin id
	cbConfirmRemove   = "confirm_remove"    // payload: admin id
	cbRemoveAdminPage = "remove_admin_page" // payload: page

	cbReview  = "review"  // payload: build id
	cbApprove = "approve" // payload: build id
	cbReject  = "reject"  // payload: build id

	cbAdvertSend   = "advert_send"
	cbAdvertCancel = "advert_cancel"

	cbShowInfo      = "show_info"
	cbVacanciesInfo = "vacancies_info"
	cbAdvertInfo    = "advertisement_info"
	cbYoutubersInfo = "youtubers_info"
)

func mainKeyboard(isMainAdmin bool) *tele.ReplyMarkup {
	rows := [][]string{
		{btnBuilds},
		{btnInfo},
		{btnVacancies, btnAds},
		{btnYoutubers},
	}
	if isMainAdmin {
		rows = append(rows, []string{btnAdminPanel})
	}
	return keyboard.ReplyButtons(rows...)
}

func adminPanelKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "➕ Добавить сборку", Unique: cbAddBuild},
			{Text: "📊 Статистика", Unique: cbStats},
		},
		[]keyboard.InlineBtn{
			{Text: "👥 Администраторы", Unique: cbAdminsList},
			{Text: "🔓 Сбросить лимит", Unique: cbResetLimit},
		},
		[]keyboard.InlineBtn{
			{Text: "⏳ Ожидающие сборки", Unique: cbPendingBuilds},
			{Text: "📋 Все сборки", Unique: cbAllBuilds},
		},
		[]keyboard.InlineBtn{
			{Text: "🗑️ Удалить сборку", Unique: cbDeleteBuild},
			{Text: "👤 Добавить админа", Unique: cbAddAdmin},
		},
		[]keyboard.InlineBtn{
			{Text: "🗑️ Удалить админа", Unique: cbRemoveAdmin},
		},
		[]keyboard.InlineBtn{
			{Text: "🏠 Главное меню", Unique: cbMainMenu},
		},
	)
}

func backToPanelKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "🔙 Назад", Unique: cbAdminPanel},
	})
}

func categoryKeyboard(canAddPaid bool) *tele.ReplyMarkup {
	if canAddPaid {
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{
				{Text: "🆓 Бесплатная", Unique: cbCategory, Data: string(model.CategoryFree)},
				{Text: "💰 Платная", Unique: cbCategory, Data: string(model.CategoryPaid)},
			},
			[]keyboard.InlineBtn{
				{Text: "🔙 Отмена", Unique: cbAdminPanel},
			},
		)
	}
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "🆓 Бесплатная сборка", Unique: cbCategory, Data: string(model.CategoryFree)},
		},
		[]keyboard.InlineBtn{
			{Text: "🔙 Отмена", Unique: cbAdminPanel},
		},
	)
}

// buildListKeyboard paginates the public catalog, one build per row.
func buildListKeyboard(builds []model.Build, page int) *tele.ReplyMarkup {
	pageItems, pages := catalog.Paginate(builds, page, catalog.PageSizeBuilds)

	var rows [][]keyboard.InlineBtn
	for _, b := range pageItems {
		label := b.Title
		if b.Category == model.CategoryPaid {
			label = fmt.Sprintf("💰 %s - %d руб.", b.Title, b.Price)
		}
		rows = append(rows, []keyboard.InlineBtn{
			{Text: label, Unique: cbBuild, Data: b.BuildID},
		})
	}
	if nav := pageNavRow(page, pages, cbBuildsPage); nav != nil {
		rows = append(rows, nav)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func deleteListKeyboard(builds []model.Build, page int) *tele.ReplyMarkup {
	pageItems, pages := catalog.Paginate(builds, page, catalog.PageSizeBuilds)

	var rows [][]keyboard.InlineBtn
	for _, b := range pageItems {
		rows = append(rows, []keyboard.InlineBtn{
			{Text: fmt.Sprintf("🗑️ %s (%s)", b.Title, b.Author), Unique: cbDeletePick, Data: b.BuildID},
		})
	}
	if nav := pageNavRow(page, pages, cbDeletePage); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "🔙 Назад", Unique: cbAdminPanel}})
	return keyboard.InlineButtonsRows(rows...)
}

func confirmDeleteKeyboard(buildID string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Да, удалить", Unique: cbConfirmDelete, Data: buildID},
		{Text: "❌ Нет, отмена", Unique: cbDeleteBuild},
	})
}

func removeAdminKeyboard(entries []admins.Entry, page int) *tele.ReplyMarkup {
	pageItems, pages := catalog.Paginate(entries, page, catalog.PageSizeAdmins)

	var rows [][]keyboard.InlineBtn
	for _, e := range pageItems {
		name := strings.TrimPrefix(e.Admin.Username, "@")
		rows = append(rows, []keyboard.InlineBtn{
			{Text: fmt.Sprintf("🗑️ @%s (%d)", name, e.Admin.BuildsAdded), Unique: cbRemoveAdminPick, Data: strconv.FormatInt(e.ID, 10)},
		})
	}
	if nav := pageNavRow(page, pages, cbRemoveAdminPage); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "🔙 Назад", Unique: cbAdminPanel}})
	return keyboard.InlineButtonsRows(rows...)
}

func confirmRemoveAdminKeyboard(adminID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Да, удалить", Unique: cbConfirmRemove, Data: strconv.FormatInt(adminID, 10)},
		{Text: "❌ Нет, отмена", Unique: cbRemoveAdmin},
	})
}

func pendingKeyboard(pending []model.PendingBuild) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn
	limit := catalog.PageSizePending
	for i, p := range pending {
		if i >= limit {
			break
		}
		rows = append(rows, []keyboard.InlineBtn{
			{
				Text:   fmt.Sprintf("%s (%s)", truncate(p.Title, 15), truncate(p.Author, 10)),
				Unique: cbReview,
				Data:   p.BuildID,
			},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "🔙 Назад", Unique: cbAdminPanel}})
	return keyboard.InlineButtonsRows(rows...)
}

func reviewKeyboard(buildID string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "✅ Одобрить", Unique: cbApprove, Data: buildID},
			{Text: "❌ Отклонить", Unique: cbReject, Data: buildID},
		},
		[]keyboard.InlineBtn{
			{Text: "🔙 Назад", Unique: cbPendingBuilds},
		},
	)
}

// buildDetailsKeyboard mixes URL buttons with callback buttons, so it is
// assembled on a raw markup instead of the InlineBtn helpers.
func buildDetailsKeyboard(b *model.Build, canDownload bool, mainAdminID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row

	if canDownload {
		if b.Category == model.CategoryPaid {
			rows = append(rows, markup.Row(markup.URL(
				fmt.Sprintf("💳 Купить за %d руб.", b.Price),
				fmt.Sprintf("tg://user?id=%d", mainAdminID),
			)))
			if b.Contact != "" {
				link := b.Contact
				if strings.HasPrefix(link, "@") {
					link = "https://t.me/" + link[1:]
				}
				rows = append(rows, markup.Row(markup.URL("📞 Связаться с продавцом", link)))
			}
		} else {
			rows = append(rows, markup.Row(markup.URL("⬇️ Скачать сборку", b.DownloadLink)))
		}
	} else {
		rows = append(rows, markup.Row(markup.Data("🔄 Сбросить лимит (100 руб.)", cbResetPayment)))
	}

	rows = append(rows, markup.Row(markup.Data("📦 К другим сборкам", cbBackToBuilds)))
	markup.Inline(rows...)
	return markup
}

func infoKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "👨‍💼 Вакансии", Unique: cbVacanciesInfo},
			{Text: "📢 Реклама", Unique: cbAdvertInfo},
		},
		[]keyboard.InlineBtn{
			{Text: "🎮 Для ютуберов", Unique: cbYoutubersInfo},
		},
		[]keyboard.InlineBtn{
			{Text: "🔙 Главное меню", Unique: cbMainMenu},
		},
	)
}

func mainMenuInlineKeyboard(isMainAdmin bool) *tele.ReplyMarkup {
	rows := [][]keyboard.InlineBtn{
		{{Text: btnBuilds, Unique: cbBackToBuilds}},
		{{Text: btnInfo, Unique: cbShowInfo}},
		{
			{Text: btnVacancies, Unique: cbVacanciesInfo},
			{Text: btnAds, Unique: cbAdvertInfo},
		},
		{{Text: btnYoutubers, Unique: cbYoutubersInfo}},
	}
	if isMainAdmin {
		rows = append(rows, []keyboard.InlineBtn{{Text: btnAdminPanel, Unique: cbAdminPanel}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

func advertConfirmKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ Отправить", Unique: cbAdvertSend}},
		[]keyboard.InlineBtn{{Text: "❌ Отменить", Unique: cbAdvertCancel}},
	)
}

func pageNavRow(page, pages int, unique string) []keyboard.InlineBtn {
	if pages <= 1 {
		return nil
	}
	var nav []keyboard.InlineBtn
	if page > 0 {
		nav = append(nav, keyboard.InlineBtn{Text: "◀️ Назад", Unique: unique, Data: strconv.Itoa(page - 1)})
	}
	if page < pages-1 {
		nav = append(nav, keyboard.InlineBtn{Text: "Вперед ▶️", Unique: unique, Data: strconv.Itoa(page + 1)})
	}
	return nav
}
