package buildsbot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/core/telegram/state"
	"buildsbot/internal/admins"
	"buildsbot/internal/catalog"
	"buildsbot/internal/model"
)

// Add-build conversation states. The category is picked via callback
// before the first text step.
const (
	stateBuildTitle       state.State = "build_title"
	stateBuildAuthor      state.State = "build_author"
	stateBuildDescription state.State = "build_description"
	stateBuildCover       state.State = "build_cover"
	stateBuildLink        state.State = "build_link"
	stateBuildPrice       state.State = "build_price"
	stateBuildContact     state.State = "build_contact"

	stateAdminUsername state.State = "admin_username"
	stateResetUsername state.State = "reset_username"
)

// Temp-data keys used by the add-build conversation.
const (
	tempCategory    = "category"
	tempTitle       = "title"
	tempAuthor      = "author"
	tempDescription = "description"
	tempCoverURL    = "cover_url"
	tempLink        = "download_link"
	tempPrice       = "price"
	tempContact     = "contact"
)

func (a *App) registerFSMHandlers() {
	state.RegisterHandler(stateBuildTitle, a.fsmBuildTitle)
	state.RegisterHandler(stateBuildAuthor, a.fsmBuildAuthor)
	state.RegisterHandler(stateBuildDescription, a.fsmBuildDescription)
	state.RegisterHandler(stateBuildCover, a.fsmBuildCover)
	state.RegisterHandler(stateBuildLink, a.fsmBuildLink)
	state.RegisterHandler(stateBuildPrice, a.fsmBuildPrice)
	state.RegisterHandler(stateBuildContact, a.fsmBuildContact)
	state.RegisterHandler(stateAdminUsername, a.fsmAdminUsername)
	state.RegisterHandler(stateResetUsername, a.fsmResetUsername)
}

func (a *App) tempString(userID int64, key string) string {
	v, _ := a.fsm.GetTemp(userID, key)
	s, _ := v.(string)
	return s
}

func (a *App) fsmBuildTitle(c tele.Context) error {
	id := c.Sender().ID
	a.fsm.SetTemp(id, tempTitle, c.Text())
	a.fsm.SetState(id, stateBuildAuthor)
	return tghelpers.SendText(c, textAskAuthor)
}

func (a *App) fsmBuildAuthor(c tele.Context) error {
	id := c.Sender().ID
	a.fsm.SetTemp(id, tempAuthor, c.Text())
	a.fsm.SetState(id, stateBuildDescription)
	return tghelpers.SendText(c, textAskDescription)
}

func (a *App) fsmBuildDescription(c tele.Context) error {
	id := c.Sender().ID
	a.fsm.SetTemp(id, tempDescription, c.Text())
	a.fsm.SetState(id, stateBuildCover)
	return tghelpers.SendText(c, textAskCover)
}

// fsmBuildCover only reminds about the expected photo; the actual cover
// is captured by the OnPhoto route.
func (a *App) fsmBuildCover(c tele.Context) error {
	return tghelpers.SendText(c, textAskCover)
}

func (a *App) fsmBuildLink(c tele.Context) error {
	id := c.Sender().ID
	a.fsm.SetTemp(id, tempLink, c.Text())

	if model.Category(a.tempString(id, tempCategory)) == model.CategoryPaid {
		if !a.admins.IsMainAdmin(id) {
			a.fsm.Clear(id)
			return tghelpers.SendHTML(c, textPaidForbidden, mainKeyboard(false))
		}
		a.fsm.SetState(id, stateBuildPrice)
		return tghelpers.SendText(c, textAskPrice)
	}
	return a.finishSubmission(c)
}

func (a *App) fsmBuildPrice(c tele.Context) error {
	id := c.Sender().ID
	price, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || price <= 0 {
		return tghelpers.SendText(c, textBadPrice)
	}
	a.fsm.SetTemp(id, tempPrice, price)
	a.fsm.SetState(id, stateBuildContact)
	return tghelpers.SendText(c, textAskContact)
}

func (a *App) fsmBuildContact(c tele.Context) error {
	contact := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(contact, "@") {
		contact = "@" + contact
	}
	a.fsm.SetTemp(c.Sender().ID, tempContact, contact)
	return a.finishSubmission(c)
}

// finishSubmission hands the collected fields to the catalog: the main
// admin publishes directly, everyone else lands in moderation.
func (a *App) finishSubmission(c tele.Context) error {
	sender := c.Sender()
	id := sender.ID

	price := 0
	if v, ok := a.fsm.GetTemp(id, tempPrice); ok {
		if p, ok := v.(int); ok {
			price = p
		}
	}
	sub := catalog.Submission{
		Title:        a.tempString(id, tempTitle),
		Author:       a.tempString(id, tempAuthor),
		Description:  a.tempString(id, tempDescription),
		CoverURL:     a.tempString(id, tempCoverURL),
		DownloadLink: a.tempString(id, tempLink),
		Category:     model.Category(a.tempString(id, tempCategory)),
		Price:        price,
		Contact:      a.tempString(id, tempContact),
	}
	a.fsm.Clear(id)

	build, published, err := a.catalog.Finalize(sub, id, sender.Username)
	if err != nil {
		if errors.Is(err, catalog.ErrPaidNotAllowed) {
			return tghelpers.SendHTML(c, textPaidForbidden, mainKeyboard(false))
		}
		return err
	}

	if published {
		return tghelpers.SendHTML(c,
			fmt.Sprintf("✅ Сборка '%s' успешно добавлена!", build.Title),
			mainKeyboard(a.admins.IsMainAdmin(id)),
		)
	}

	// Moderation notice: the cover photo with the review controls goes to
	// the main admin directly.
	pending, err := a.catalog.PendingGet(build.BuildID)
	if err == nil {
		photo := &tele.Photo{
			File:    tele.File{FileID: pending.CoverURL},
			Caption: formatModerationPreview(pending),
		}
		_, sendErr := a.bot.Send(
			&tele.User{ID: a.admins.MainAdminID()},
			photo,
			&tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: reviewKeyboard(build.BuildID)},
		)
		if sendErr != nil {
			logger.Warn(tghelpers.BuildContext(c), "bot", "moderation.notify.fail",
				slog.String("build_id", build.BuildID),
				slog.String("err", sendErr.Error()),
			)
		}
	}

	return tghelpers.SendHTML(c, textSentToModeration, mainKeyboard(false))
}

func (a *App) fsmAdminUsername(c tele.Context) error {
	sender := c.Sender()
	username := strings.TrimPrefix(strings.TrimSpace(c.Text()), "@")
	a.fsm.Clear(sender.ID)

	id, err := a.admins.AddByUsername(username, sender.ID)
	switch {
	case err == nil:
		_ = tghelpers.SendText(c,
			fmt.Sprintf("✅ Пользователь @%s добавлен в администраторы.", username))
		a.notifyQuiet(c, id, textAdminGranted)
	case errors.Is(err, admins.ErrAlreadyAdmin):
		_ = tghelpers.SendText(c,
			fmt.Sprintf("❌ Пользователь @%s уже является администратором.", username))
	case errors.Is(err, admins.ErrUserNotFound):
		_ = tghelpers.SendText(c,
			fmt.Sprintf("❌ Пользователь с юзернеймом @%s не найден в базе бота.", username))
	default:
		return err
	}

	return tghelpers.SendHTML(c, textAdminPanel, adminPanelKeyboard())
}

func (a *App) fsmResetUsername(c tele.Context) error {
	sender := c.Sender()
	username := strings.TrimPrefix(strings.TrimSpace(c.Text()), "@")
	a.fsm.Clear(sender.ID)

	id, ok := a.findUserByUsername(username)
	if !ok {
		_ = tghelpers.SendText(c, "❌ Пользователь с таким юзернеймом не найден.")
		return tghelpers.SendHTML(c, textAdminPanel, adminPanelKeyboard())
	}

	reset, err := a.catalog.ResetLimit(id)
	if err != nil {
		return err
	}
	if !reset {
		_ = tghelpers.SendText(c, "❌ Не удалось сбросить лимит.")
	} else {
		_ = tghelpers.SendText(c,
			fmt.Sprintf("✅ Лимит для пользователя @%s успешно сброшен.", username))
		a.notifyQuiet(c, id, textLimitWasReset)
	}

	return tghelpers.SendHTML(c, textAdminPanel, adminPanelKeyboard())
}
