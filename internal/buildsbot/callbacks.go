package buildsbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	coretelegram "buildsbot/core/telegram"
	"buildsbot/core/telegram/callbacks"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/internal/admins"
	"buildsbot/internal/broadcast"
	"buildsbot/internal/catalog"
	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	register := func(key string, h tele.HandlerFunc) {
		if err := reg.RegisterCallback(key, h); err != nil {
			logger.Component("bot").Warn("callback wiring failed",
				slog.String("event", "register.callback"),
				slog.String("cb_key", key),
				slog.String("err", err.Error()),
			)
		}
	}

	register(cbAdminPanel, a.cbAdminPanel)
	register(cbMainMenu, a.cbMainMenu)

	register(cbBackToBuilds, a.cbBackToBuilds)
	register(cbBuildsPage, a.cbBuildsPage)
	register(cbBuild, a.cbBuildDetails)
	register(cbResetPayment, a.cbResetPayment)

	register(cbShowInfo, a.infoCallback(textInfo))
	register(cbVacanciesInfo, a.infoCallback(textVacancies))
	register(cbAdvertInfo, a.infoCallback(textAdvertInfo))
	register(cbYoutubersInfo, a.infoCallback(textYoutubers))

	register(cbAddBuild, a.cbAddBuild)
	register(cbCategory, a.cbCategory)
	register(cbStats, a.cbStats)
	register(cbAdminsList, a.cbAdminsList)
	register(cbResetLimit, a.cbResetLimit)
	register(cbPendingBuilds, a.cbPendingBuilds)
	register(cbReview, a.cbReview)
	register(cbApprove, a.cbApprove)
	register(cbReject, a.cbReject)
	register(cbAllBuilds, a.cbAllBuilds)
	register(cbDeleteBuild, a.cbDeleteBuild)
	register(cbDeletePick, a.cbDeletePick)
	register(cbConfirmDelete, a.cbConfirmDelete)
	register(cbDeletePage, a.cbDeletePage)
	register(cbAddAdmin, a.cbAddAdmin)
	register(cbRemoveAdmin, a.cbRemoveAdmin)
	register(cbRemoveAdminPick, a.cbRemoveAdminPick)
	register(cbConfirmRemove, a.cbConfirmRemove)
	register(cbRemoveAdminPage, a.cbRemoveAdminPage)
	register(cbAdvertSend, a.cbAdvertSend)
	register(cbAdvertCancel, a.cbAdvertCancel)
}

func (a *App) cbAdminPanel(c tele.Context) error {
	sender := c.Sender()
	if !a.admins.IsAdmin(sender.ID) {
		return tghelpers.SendText(c, textNoAccessPanel)
	}
	a.fsm.Clear(sender.ID)
	return tghelpers.EditOrSendHTML(c, textAdminPanel, adminPanelKeyboard())
}

func (a *App) cbMainMenu(c tele.Context) error {
	st, err := a.stats.Get()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c,
		formatWelcome(st.TotalUsers, st.TotalDownloads, st.BuildsAdded),
		mainMenuInlineKeyboard(a.isMainAdmin(c)),
	)
}

func (a *App) infoCallback(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.EditOrSendHTML(c, text, infoKeyboard())
	}
}

func (a *App) cbBackToBuilds(c tele.Context) error {
	return a.showBuildList(c, true)
}

func (a *App) cbBuildsPage(c tele.Context) error {
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return err
	}
	builds, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("<b>Доступные сборки (%d):</b>", len(builds)),
		buildListKeyboard(builds, page),
	)
}

func (a *App) cbResetPayment(c tele.Context) error {
	return tghelpers.SendHTML(c, textResetPayment)
}

func (a *App) cbAddBuild(c tele.Context) error {
	sender := c.Sender()
	if !a.admins.IsAdmin(sender.ID) {
		return tghelpers.SendText(c, "У вас нет прав для добавления сборок.")
	}
	canAddPaid := a.admins.IsMainAdmin(sender.ID)
	title := "Добавление сборки:"
	if canAddPaid {
		title = "Выберите тип сборки:"
	}
	return tghelpers.EditOrSendHTML(c, title, categoryKeyboard(canAddPaid))
}

func (a *App) cbCategory(c tele.Context) error {
	sender := c.Sender()
	category := model.Category(callbacks.CallbackPayload(c))
	if !category.Valid() {
		return tghelpers.SendText(c, textBuildNotFound)
	}
	if category == model.CategoryPaid && !a.admins.IsMainAdmin(sender.ID) {
		return tghelpers.SendText(c, textPaidForbidden)
	}

	a.fsm.SetTemp(sender.ID, tempCategory, string(category))
	a.fsm.SetState(sender.ID, stateBuildTitle)

	label := "бесплатной"
	if category == model.CategoryPaid {
		label = "платной"
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("Добавление %s сборки\n\n%s", label, textAskTitle))
}

func (a *App) cbStats(c tele.Context) error {
	if !a.admins.IsAdmin(c.Sender().ID) {
		return tghelpers.SendText(c, "У вас нет прав для просмотра статистики.")
	}
	st, err := a.stats.Get()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, formatStats(st, a.activeToday(c)), backToPanelKeyboard())
}

// activeToday counts users registered within the last day.
func (a *App) activeToday(c tele.Context) int {
	users := model.Users{}
	if err := a.store.Load(store.DocUsers, &users); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "bot", "users.load.fail",
			slog.String("err", err.Error()))
		return 0
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	n := 0
	for _, u := range users {
		reg, err := time.Parse(time.RFC3339, u.RegisteredAt)
		if err == nil && reg.After(cutoff) {
			n++
		}
	}
	return n
}

func (a *App) cbAdminsList(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для просмотра списка администраторов.")
	}
	entries, err := a.admins.List()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, formatAdminsList(entries), backToPanelKeyboard())
}

func (a *App) cbResetLimit(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для сброса лимитов.")
	}
	a.fsm.SetState(c.Sender().ID, stateResetUsername)
	return tghelpers.EditOrSendHTML(c, textAskResetUsername)
}

func (a *App) cbPendingBuilds(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для просмотра ожидающих сборок.")
	}
	pending, err := a.catalog.PendingList()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return tghelpers.EditOrSendHTML(c, "Нет сборок, ожидающих модерации.", backToPanelKeyboard())
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("<b>Ожидающие модерации сборки (%d):</b>", len(pending)),
		pendingKeyboard(pending),
	)
}

func (a *App) cbReview(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для модерации сборок.")
	}
	id := callbacks.CallbackPayload(c)
	p, err := a.catalog.PendingGet(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}
	return tghelpers.SendPhotoHTML(c, p.CoverURL, formatReviewCard(p), reviewKeyboard(id))
}

func (a *App) cbApprove(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для одобрения сборок.")
	}
	id := callbacks.CallbackPayload(c)
	approved, err := a.catalog.Approve(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}

	a.notifyQuiet(c, approved.RequesterID,
		fmt.Sprintf("✅ Ваша сборка '%s' была одобрена и опубликована!", approved.Title))

	// The review message carries the cover photo, so the verdict replaces
	// its caption.
	_ = c.EditCaption(fmt.Sprintf("✅ Сборка '%s' одобрена и опубликована.", approved.Title))
	return nil
}

func (a *App) cbReject(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для отклонения сборок.")
	}
	id := callbacks.CallbackPayload(c)
	rejected, err := a.catalog.Reject(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}

	a.notifyQuiet(c, rejected.RequesterID,
		fmt.Sprintf("❌ Ваша сборка '%s' была отклонена.", rejected.Title))

	_ = c.EditCaption(fmt.Sprintf("❌ Сборка '%s' отклонена.", rejected.Title))
	return nil
}

func (a *App) cbAllBuilds(c tele.Context) error {
	if !a.admins.IsAdmin(c.Sender().ID) {
		return tghelpers.SendText(c, "У вас нет прав для просмотра всех сборок.")
	}
	builds, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		return tghelpers.EditOrSendHTML(c, "Нет доступных сборок.", backToPanelKeyboard())
	}

	text := "<b>📋 Все сборки:</b>\n\n"
	for i, b := range builds {
		kind := "🆓 Бесплатная"
		if b.Category == model.CategoryPaid {
			kind = "💰 Платная"
		}
		text += fmt.Sprintf("<b>%d. %s</b> (%s)\n   Тип: %s\n   Добавлена: %s\n\n",
			i+1, b.Title, b.Author, kind, truncate(b.AddedAt, 10))
	}
	return tghelpers.EditOrSendHTML(c, truncate(text, 4000), backToPanelKeyboard())
}

func (a *App) cbDeleteBuild(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "Только главный администратор может удалять сборки.")
	}
	builds, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		return tghelpers.EditOrSendHTML(c, "Нет сборок для удаления.", backToPanelKeyboard())
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("<b>Выберите сборку для удаления (%d):</b>", len(builds)),
		deleteListKeyboard(builds, 0),
	)
}

func (a *App) cbDeletePick(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "Только главный администратор может удалять сборки.")
	}
	id := callbacks.CallbackPayload(c)
	b, err := a.catalog.Get(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}
	return tghelpers.EditOrSendHTML(c, formatConfirmDelete(b), confirmDeleteKeyboard(id))
}

func (a *App) cbConfirmDelete(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "Только главный администратор может удалять сборки.")
	}
	id := callbacks.CallbackPayload(c)
	removed, err := a.catalog.Delete(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}

	if removed.AddedBy != 0 && !a.admins.IsMainAdmin(removed.AddedBy) {
		a.notifyQuiet(c, removed.AddedBy,
			fmt.Sprintf("ℹ️ Ваша сборка '%s' была удалена из каталога администратором.", removed.Title))
	}

	rest, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return tghelpers.EditOrSendHTML(c,
			"✅ Сборка удалена.\n\nНет других сборок для удаления.", backToPanelKeyboard())
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("✅ Сборка удалена.\n\n<b>Выберите следующую сборку для удаления (%d):</b>", len(rest)),
		deleteListKeyboard(rest, 0),
	)
}

func (a *App) cbDeletePage(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "Только главный администратор может удалять сборки.")
	}
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return err
	}
	builds, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("<b>Выберите сборку для удаления (%d):</b>", len(builds)),
		deleteListKeyboard(builds, page),
	)
}

func (a *App) cbAddAdmin(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для добавления администраторов.")
	}
	a.fsm.SetState(c.Sender().ID, stateAdminUsername)
	return tghelpers.EditOrSendHTML(c, textAskAdminUsername)
}

func (a *App) cbRemoveAdmin(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для удаления администраторов.")
	}
	entries, err := a.admins.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return tghelpers.EditOrSendHTML(c,
			"❌ Нет администраторов для удаления (кроме главного).", backToPanelKeyboard())
	}
	return tghelpers.EditOrSendHTML(c,
		"Выберите администратора для удаления:", removeAdminKeyboard(entries, 0))
}

func (a *App) cbRemoveAdminPick(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для удаления администраторов.")
	}
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	if a.admins.IsMainAdmin(id) {
		return tghelpers.SendText(c, textCannotRemoveMain)
	}
	rec, err := a.admins.Get(id)
	if err != nil {
		return tghelpers.SendText(c, textAdminNotFound)
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("<b>Удалить администратора @%s?</b>\n\nСборок добавлено: %d",
			rec.Username, rec.BuildsAdded),
		confirmRemoveAdminKeyboard(id),
	)
}

func (a *App) cbConfirmRemove(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для удаления администраторов.")
	}
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	rec, err := a.admins.Get(id)
	if err != nil {
		return tghelpers.SendText(c, textAdminNotFound)
	}
	if err := a.admins.RemoveByID(id); err != nil {
		if errors.Is(err, admins.ErrMainAdmin) {
			return tghelpers.SendText(c, textCannotRemoveMain)
		}
		return tghelpers.SendText(c, textAdminNotFound)
	}

	a.notifyQuiet(c, id, textAdminRightsRevoked)
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("✅ Администратор @%s удален.", rec.Username), backToPanelKeyboard())
}

func (a *App) cbRemoveAdminPage(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "У вас нет прав для удаления администраторов.")
	}
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return err
	}
	entries, err := a.admins.List()
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c,
		"Выберите администратора для удаления:", removeAdminKeyboard(entries, page))
}

func (a *App) cbAdvertSend(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "❌ Только главный администратор может отправлять рассылки.")
	}
	sender := c.Sender()
	raw, ok := a.fsm.GetTemp(sender.ID, tempAdvertText)
	text, _ := raw.(string)
	if !ok || text == "" {
		return tghelpers.SendText(c, textAdvertNoText)
	}
	a.fsm.ClearTemp(sender.ID, tempAdvertText)

	users := model.Users{}
	if err := a.store.Load(store.DocUsers, &users); err != nil {
		return err
	}
	if len(users) == 0 {
		return tghelpers.EditOrSendHTML(c, textAdvertNoUsers)
	}

	ids := make([]int64, 0, len(users))
	for key := range users {
		id, err := model.ParseUserKey(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	_ = tghelpers.EditOrSendHTML(c, textAdvertSending)
	progressMsg, _ := c.Bot().Send(c.Chat(), progressBar(0, len(ids)))

	message := formatAdvertMessage(text, time.Now())
	send := func(_ context.Context, userID int64) error {
		return a.sendUserHTML(userID, message)
	}
	progress := func(done, total int) {
		if progressMsg != nil {
			edited, err := c.Bot().Edit(progressMsg, progressBar(done, total))
			if err == nil {
				progressMsg = edited
			}
		}
	}

	report := broadcast.Run(tghelpers.BuildContext(c), ids, send, progress, broadcast.Options{})

	if progressMsg != nil {
		_ = c.Bot().Delete(progressMsg)
	}
	return tghelpers.SendHTML(c,
		formatBroadcastReport(report.Total, report.Sent, report.Blocked, report.Failed, time.Now()))
}

func (a *App) cbAdvertCancel(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, "❌ Только главный администратор может отменять рассылки.")
	}
	a.fsm.ClearTemp(c.Sender().ID, tempAdvertText)
	return tghelpers.EditOrSendHTML(c, textAdvertCancelled)
}
