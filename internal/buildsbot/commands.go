package buildsbot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/internal/admins"
	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

func (a *App) cmdStart(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()

	// /start is suppressed in the staff chat for everyone but the main
	// admin: the command message and the warning are both removed.
	if chat != nil && chat.ID == a.cfg.Staff.ChatID && !a.admins.IsMainAdmin(sender.ID) {
		_ = c.Delete()
		warning, err := c.Bot().Send(chat, textStartInStaffChat, tele.ModeHTML)
		if err == nil {
			bot := c.Bot()
			go func() {
				time.Sleep(5 * time.Second)
				_ = bot.Delete(warning)
			}()
		}
		return nil
	}

	if err := a.catalog.RegisterUser(sender.ID, sender.Username, sender.FirstName); err != nil {
		logger.Error(tghelpers.BuildContext(c), "bot", "register.fail",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
	}

	users, builds, downloads := a.liveCounts(c)
	return tghelpers.SendHTML(c,
		formatWelcome(users, downloads, builds),
		mainKeyboard(a.admins.IsMainAdmin(sender.ID)),
	)
}

// liveCounts reads the documents directly so the greeting shows real
// figures even when the stats document is stale.
func (a *App) liveCounts(c tele.Context) (users, builds, downloads int) {
	allUsers := model.Users{}
	if err := a.store.Load(store.DocUsers, &allUsers); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "bot", "users.load.fail",
			slog.String("err", err.Error()))
	}
	allBuilds := model.Builds{}
	if err := a.store.Load(store.DocBuilds, &allBuilds); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "bot", "builds.load.fail",
			slog.String("err", err.Error()))
	}
	for _, u := range allUsers {
		downloads += u.DownloadsCount
	}
	return len(allUsers), len(allBuilds), downloads
}

func (a *App) cmdAdmin(c tele.Context) error {
	return a.openAdminPanel(c, textNoAccessCommand, textAdminStaffOnly)
}

// openAdminPanel enforces the delegation policy: the main admin gets the
// panel anywhere, delegated admins only inside the staff chat.
func (a *App) openAdminPanel(c tele.Context, denied, wrongChat string) error {
	sender := c.Sender()
	if !a.admins.IsAdmin(sender.ID) {
		return tghelpers.SendText(c, denied)
	}
	chatID := int64(0)
	if c.Chat() != nil {
		chatID = c.Chat().ID
	}
	if !a.admins.AllowedIn(sender.ID, chatID) {
		return tghelpers.SendText(c, wrongChat)
	}
	return tghelpers.SendHTML(c, textAdminPanel, adminPanelKeyboard())
}

func (a *App) cmdHelp(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}
	return tghelpers.SendHTML(c, formatHelp(a.admins.MainAdminID(), a.admins.StaffChatID(), time.Now()))
}

func (a *App) cmdAdminInfo(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}

	entries, err := a.admins.List()
	if err != nil {
		return err
	}
	builds := model.Builds{}
	if err := a.store.Load(store.DocBuilds, &builds); err != nil {
		return err
	}

	// Count catalog entries per submitter independent of the stored
	// builds_added counters.
	perAdmin := map[int64]int{}
	for _, b := range builds {
		perAdmin[b.AddedBy]++
	}

	var sb strings.Builder
	sb.WriteString("<b>📋 Подробная информация об администраторах:</b>\n\n")
	fmt.Fprintf(&sb, "👑 <b>Главный администратор:</b>\n")
	fmt.Fprintf(&sb, "• ID: <code>%d</code>\n", a.admins.MainAdminID())
	fmt.Fprintf(&sb, "• Юзернейм: %s\n", mainAdminContact)
	fmt.Fprintf(&sb, "• Сборок добавлено: %d\n\n", perAdmin[a.admins.MainAdminID()])

	if len(entries) == 0 {
		sb.WriteString("👥 <b>Обычные администраторы:</b> Нет\n\n")
	} else {
		fmt.Fprintf(&sb, "👥 <b>Обычные администраторы (%d):</b>\n\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(&sb, "<b>• @%s</b>\n", e.Admin.Username)
			fmt.Fprintf(&sb, "  ID: <code>%d</code>\n", e.ID)
			fmt.Fprintf(&sb, "  Сборок: %d\n", perAdmin[e.ID])
			fmt.Fprintf(&sb, "  Добавлен: %s\n", truncate(e.Admin.AddedAt, 10))
			if e.Admin.AddedBy.Auto {
				sb.WriteString("  Кем добавлен: автоматически (чат сотрудников)\n\n")
			} else {
				fmt.Fprintf(&sb, "  Кем добавлен: %d\n\n", e.Admin.AddedBy.UserID)
			}
		}
	}

	fromAdmins := 0
	for _, n := range perAdmin {
		fromAdmins += n
	}
	sb.WriteString("📊 <b>Общая статистика:</b>\n")
	fmt.Fprintf(&sb, "• Всего администраторов: %d\n", len(entries)+1)
	fmt.Fprintf(&sb, "• Всего сборок в боте: %d\n", len(builds))
	fmt.Fprintf(&sb, "• Сборок от администраторов: %d\n", fromAdmins)

	return tghelpers.SendHTML(c, truncate(sb.String(), 4000))
}

func (a *App) cmdSyncStats(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}
	start := time.Now()
	report, err := a.stats.Sync()
	logger.Info(tghelpers.BuildContext(c), "bot", "stats.sync",
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, formatSyncReport(report, time.Now()))
}

func (a *App) cmdRemoveAdmin(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}

	args := strings.Fields(c.Text())
	if len(args) < 2 {
		return tghelpers.SendText(c, "Использование: /removeadmin @username")
	}
	username := strings.TrimPrefix(args[1], "@")

	id, err := a.admins.RemoveByUsername(username)
	if err != nil {
		if errors.Is(err, admins.ErrMainAdmin) {
			return tghelpers.SendText(c, textCannotRemoveMain)
		}
		return tghelpers.SendText(c, fmt.Sprintf("❌ Администратор @%s не найден.", username))
	}
	a.notifyQuiet(c, id, textAdminRightsRevoked)

	entries, err := a.admins.List()
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, fmt.Sprintf(
		"✅ <b>Администратор удален</b>\n\n👤 @%s больше не имеет прав администратора.\n📋 Осталось администраторов: %d",
		username, len(entries)))
}

const tempAdvertText = "advert_text"

func (a *App) cmdAdvert(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}

	parts := strings.SplitN(c.Text(), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return tghelpers.SendText(c, textAdvertUsage)
	}
	text := strings.TrimSpace(parts[1])

	a.fsm.SetTemp(c.Sender().ID, tempAdvertText, text)
	return tghelpers.SendHTML(c, formatAdvertPreview(text, time.Now()), advertConfirmKeyboard())
}

// cleanDepth is how many preceding messages /clean attempts to remove.
const cleanDepth = 10

// inStaffChat reports whether the update came from the staff group.
func (a *App) inStaffChat(c tele.Context) bool {
	return c.Chat() != nil && c.Chat().ID == a.cfg.Staff.ChatID
}

func (a *App) cmdClearKeyboard(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}
	if !a.inStaffChat(c) {
		return tghelpers.SendText(c, formatStaffOnlyCommand(a.cfg.Staff.ChatID))
	}
	if err := c.Send(textKeyboardRemoved, &tele.ReplyMarkup{RemoveKeyboard: true}); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, textCleanupCommands)
}

func (a *App) cmdClean(c tele.Context) error {
	if !a.isMainAdmin(c) {
		return tghelpers.SendText(c, textMainAdminOnly)
	}
	if !a.inStaffChat(c) {
		return tghelpers.SendText(c, formatStaffOnlyCommand(a.cfg.Staff.ChatID))
	}

	msg := c.Message()
	chat := c.Chat()
	bot := c.Bot()
	_ = c.Delete()

	// Walk back through ids until a delete fails; gaps end the sweep
	// the same way too-old messages do.
	deleted := 0
	for i := 1; i <= cleanDepth; i++ {
		target := tele.StoredMessage{
			ChatID:    chat.ID,
			MessageID: strconv.Itoa(msg.ID - i),
		}
		if err := bot.Delete(target); err != nil {
			break
		}
		deleted++
	}

	text := textCleanFailed
	if deleted > 0 {
		text = formatCleanDone(deleted)
	}
	note, err := bot.Send(chat, text)
	if err == nil {
		go func() {
			time.Sleep(3 * time.Second)
			_ = bot.Delete(note)
		}()
	}
	return nil
}
