package buildsbot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	"buildsbot/core/telegram/callbacks"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/core/telegram/middleware"
	"buildsbot/internal/catalog"
	"buildsbot/internal/model"
)

// showBuildList renders page 0 of the public catalog. Callbacks edit the
// existing message, the reply-keyboard button sends a fresh one.
func (a *App) showBuildList(c tele.Context, edit bool) error {
	builds, err := a.catalog.Builds()
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		if edit {
			return tghelpers.EditOrSendHTML(c, textNoBuilds)
		}
		return tghelpers.SendText(c, textNoBuilds)
	}

	text := fmt.Sprintf("<b>Доступные сборки (%d):</b>", len(builds))
	markup := buildListKeyboard(builds, 0)
	if edit {
		return tghelpers.EditOrSendHTML(c, text, markup)
	}
	return tghelpers.SendHTML(c, text, markup)
}

// cbBuildDetails shows one build card. Opening a FREE build while the
// limit allows it counts as the download and starts the 24h cooldown.
func (a *App) cbBuildDetails(c tele.Context) error {
	id := callbacks.CallbackPayload(c)
	b, err := a.catalog.Get(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendText(c, textBuildNotFound)
		}
		return err
	}

	sender := c.Sender()
	if err := a.catalog.RegisterUser(sender.ID, sender.Username, sender.FirstName); err != nil {
		return err
	}

	canDownload := true
	wait := ""
	if b.Category == model.CategoryFree {
		ok, left, err := a.catalog.CanDownload(sender.ID)
		if err != nil {
			return err
		}
		canDownload = ok
		if !ok {
			wait = catalog.FormatWait(left)
		}
	}

	if err := tghelpers.SendPhotoHTML(c, b.CoverURL,
		formatBuildDetails(b, canDownload, wait),
		buildDetailsKeyboard(b, canDownload, a.admins.MainAdminID()),
	); err != nil {
		logger.Error(tghelpers.BuildContext(c), "bot", "build.card.fail",
			slog.String("build_id", id),
			slog.String("err", err.Error()),
		)
		return err
	}

	if canDownload && b.Category == model.CategoryFree {
		if err := a.catalog.RecordDownload(sender.ID, id); err != nil {
			logger.Error(tghelpers.BuildContext(c), "bot", "download.record.fail",
				slog.Int64("user_id", sender.ID),
				slog.String("build_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

// handlePhoto feeds photos into the add-build conversation; photos sent
// outside the cover step are ignored.
func (a *App) handlePhoto(c tele.Context) error {
	h := middleware.RecoverMiddleware(middleware.LoggerMiddleware(func(c tele.Context) error {
		sender := c.Sender()
		if a.fsm.GetState(sender.ID) != stateBuildCover {
			return nil
		}
		photo := c.Message().Photo
		if photo == nil {
			return tghelpers.SendText(c, textAskCover)
		}
		a.fsm.SetTemp(sender.ID, tempCoverURL, photo.FileID)
		a.fsm.SetState(sender.ID, stateBuildLink)
		return tghelpers.SendText(c, textAskLink)
	}))
	return h(c)
}

// handleChatMember syncs admin rights with staff-chat membership.
func (a *App) handleChatMember(c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || upd.Chat == nil || upd.Chat.ID != a.cfg.Staff.ChatID {
		return nil
	}
	if upd.NewChatMember == nil || upd.OldChatMember == nil {
		return nil
	}

	user := upd.NewChatMember.User
	if user == nil {
		return nil
	}
	username := user.Username
	if username == "" {
		username = user.FirstName
	}

	ctx := tghelpers.BuildContext(c)
	oldIn := memberStatus(upd.OldChatMember.Role)
	newIn := memberStatus(upd.NewChatMember.Role)

	switch {
	case newIn && !oldIn:
		granted, err := a.admins.PromoteFromChatJoin(user.ID, username, time.Now())
		if err != nil {
			logger.Error(ctx, "bot", "staff.join.fail",
				slog.Int64("user_id", user.ID),
				slog.String("err", err.Error()),
			)
			return err
		}
		if granted {
			logger.Info(ctx, "bot", "staff.admin.granted",
				slog.Int64("user_id", user.ID),
				slog.String("username", username),
			)
			a.notifyQuiet(c, user.ID, textStaffWelcome)
		}
	case !newIn && oldIn:
		revoked, err := a.admins.DemoteFromChatLeave(user.ID)
		if err != nil {
			logger.Error(ctx, "bot", "staff.leave.fail",
				slog.Int64("user_id", user.ID),
				slog.String("err", err.Error()),
			)
			return err
		}
		if revoked {
			logger.Info(ctx, "bot", "staff.admin.revoked",
				slog.Int64("user_id", user.ID),
				slog.String("username", username),
			)
			a.notifyQuiet(c, user.ID, textStaffGoodbye)
		}
	}
	return nil
}

func memberStatus(role tele.MemberStatus) bool {
	switch role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	default:
		return false
	}
}
