// Package buildsbot wires the Amazing Online catalog bot: the public
// build list with its 24h download limit, the staff-gated admin panel,
// submission moderation and the broadcast tooling.
package buildsbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	coretelegram "buildsbot/core/telegram"
	"buildsbot/core/telegram/commands"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/core/telegram/router"
	"buildsbot/core/telegram/state"
	"buildsbot/internal/admins"
	"buildsbot/internal/catalog"
	"buildsbot/internal/model"
	"buildsbot/internal/notify"
	"buildsbot/internal/stats"
	"buildsbot/internal/store"
)

// App holds the composed services of the catalog bot.
type App struct {
	cfg *Config

	store     *store.Store
	admins    *admins.Service
	stats     *stats.Service
	catalog   *catalog.Service
	scheduler *notify.Scheduler
	fsm       state.Manager

	bot *tele.Bot

	schedulerCancel context.CancelFunc
}

// New composes the application services on top of the document store.
func New(cfg *Config) (*App, error) {
	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("buildsbot: store init: %w", err)
	}

	a := &App{
		cfg:   cfg,
		store: st,
		fsm:   state.NewMemoryManager(),
	}
	a.admins = admins.New(st, cfg.Core.Telegram.AdminID, cfg.Staff.ChatID)
	a.stats = stats.New(st)
	a.scheduler = notify.NewScheduler(st, a.sendLimitNotice)
	a.catalog = catalog.New(st, a.stats, a.admins, a.scheduler)

	a.registerFSMHandlers()
	return a, nil
}

// TelegramRunOptions assembles the bot runtime: registry, middlewares,
// routers, the photo and chat-member routes, and the notification loop.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.handleMenuText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin: a.admins.IsAdmin,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, textNoAccessCommand)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.fsm, reg, router.TextOptions{})...)
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnPhoto,
		Handler:  a.handlePhoto,
	})
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnChatMember,
		Handler:  a.handleChatMember,
	})

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.bot = rt.Bot
			schedCtx, cancel := context.WithCancel(context.Background())
			a.schedulerCancel = cancel
			go a.scheduler.Run(schedCtx)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			if a.schedulerCancel != nil {
				a.schedulerCancel()
			}
			return nil
		},
	}, nil
}

func (a *App) isMainAdmin(c tele.Context) bool {
	return a.admins.IsMainAdmin(c.Sender().ID)
}

// findUserByUsername resolves a handle against the users document.
func (a *App) findUserByUsername(username string) (int64, bool) {
	users := model.Users{}
	if err := a.store.Load(store.DocUsers, &users); err != nil {
		return 0, false
	}
	needle := strings.ToLower(strings.TrimPrefix(username, "@"))
	for key, u := range users {
		if strings.ToLower(strings.TrimPrefix(u.Username, "@")) != needle {
			continue
		}
		id, err := model.ParseUserKey(key)
		if err != nil {
			continue
		}
		return id, true
	}
	return 0, false
}

// sendUserHTML delivers a message to an arbitrary user outside of any
// update handler, e.g. moderation verdicts and limit notices.
func (a *App) sendUserHTML(userID int64, text string) error {
	if a.bot == nil {
		return fmt.Errorf("buildsbot: bot not started")
	}
	_, err := a.bot.Send(&tele.User{ID: userID}, text, tele.ModeHTML)
	return err
}

func (a *App) sendLimitNotice(ctx context.Context, n model.Notification) error {
	if n.Type != model.NotificationDownloadAvailable {
		logger.Warn(ctx, "notify", "type.unknown", slog.String("type", n.Type))
		return nil
	}
	return a.sendUserHTML(n.UserID, textLimitRenewed)
}

// notifyQuiet sends a courtesy message and only logs delivery failures.
func (a *App) notifyQuiet(c tele.Context, userID int64, text string) {
	if err := a.sendUserHTML(userID, text); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "bot", "notify.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// commandList is ordered only for readability; the registry sorts output.
func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Начать работу с ботом",
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     a.cmdAdmin,
		Description: "Панель администратора",
		Hidden:      true,
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.cmdHelp,
		Description: "Список команд",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/admininfo", commands.Command{
		Handler:     a.cmdAdminInfo,
		Description: "Информация об администраторах",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/syncstats", commands.Command{
		Handler:     a.cmdSyncStats,
		Description: "Синхронизировать статистику",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/removeadmin", commands.Command{
		Handler:     a.cmdRemoveAdmin,
		Description: "Удалить администратора",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/advert", commands.Command{
		Handler:     a.cmdAdvert,
		Description: "Подать объявление",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/clearkeyboard", commands.Command{
		Handler:     a.cmdClearKeyboard,
		Description: "Удалить клавиатуру",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/clean", commands.Command{
		Handler:     a.cmdClean,
		Description: "Удалить последние сообщения",
		AdminOnly:   true,
		Hidden:      true,
	})
}

// handleMenuText routes the reply-keyboard buttons. Unknown text from
// idle users is ignored, matching a keyboard-driven bot.
func (a *App) handleMenuText(c tele.Context) error {
	switch c.Text() {
	case btnBuilds:
		return a.showBuildList(c, false)
	case btnInfo:
		return tghelpers.SendHTML(c, textInfo, infoKeyboard())
	case btnVacancies:
		return tghelpers.SendHTML(c, textVacancies, infoKeyboard())
	case btnAds:
		return tghelpers.SendHTML(c, textAdvertInfo, infoKeyboard())
	case btnYoutubers:
		return tghelpers.SendHTML(c, textYoutubers, infoKeyboard())
	case btnAdminPanel:
		return a.openAdminPanel(c, textNoAccessPanel, textPanelStaffOnly)
	}
	return nil
}
