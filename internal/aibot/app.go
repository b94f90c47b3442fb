// Package aibot wires the assistant bot: per-user conversations proxied
// to the Anthropic API, a model picker and image understanding.
package aibot

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	tele "gopkg.in/telebot.v4"

	"buildsbot/core/logger"
	coretelegram "buildsbot/core/telegram"
	"buildsbot/core/telegram/callbacks"
	"buildsbot/core/telegram/commands"
	tghelpers "buildsbot/core/telegram/helpers"
	"buildsbot/core/telegram/keyboard"
	"buildsbot/core/telegram/middleware"
	"buildsbot/core/telegram/router"
	"buildsbot/internal/ai"
)

// messageLimit is Telegram's maximum message length with headroom for
// HTML escaping artifacts.
const messageLimit = 4000

const cbModel = "model" // payload: registry name

const (
	textGreeting = `<b>👋 Привет! Я ИИ-ассистент.</b>

Просто напишите сообщение — я отвечу.
Можно прислать изображение: я учту его в следующем ответе.

Команды:
/model - выбрать модель
/clear - очистить историю диалога`

	textPickModel    = "🧠 <b>Выберите модель:</b>"
	textCleared      = "🗑 История диалога очищена."
	textImageSaved   = "🖼 Изображение получено. Задайте вопрос по нему."
	textImageNoText  = "Не удалось прочитать изображение. Попробуйте ещё раз."
	textModelUnknown = "❌ Неизвестная модель."
)

// App holds the assistant bot services.
type App struct {
	cfg *Config
	ai  *ai.Service
}

// New builds the application around a live Anthropic client.
func New(cfg *Config) (*App, error) {
	client := anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey))
	svc := ai.New(client, ai.Registry(), ai.Options{
		HistoryLimit: cfg.Anthropic.HistoryLimit,
		MaxTokens:    cfg.Anthropic.MaxTokens,
		Temperature:  cfg.Anthropic.Temperature,
	})
	return &App{cfg: cfg, ai: svc}, nil
}

// TelegramRunOptions assembles the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Начать диалог",
	})
	reg.RegisterCommand("/model", commands.Command{
		Handler:     a.cmdModel,
		Description: "Выбрать модель",
	})
	reg.RegisterCommand("/clear", commands.Command{
		Handler:     a.cmdClear,
		Description: "Очистить историю",
	})

	if err := reg.RegisterCallback(cbModel, a.cbSelectModel); err != nil {
		return coretelegram.RunOptions{}, err
	}
	reg.SetTextFallback(a.handleText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(nil, reg, router.TextOptions{})...)
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnPhoto,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(a.handlePhoto)),
	})

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
	}, nil
}

func (a *App) cmdStart(c tele.Context) error {
	return tghelpers.SendHTML(c, textGreeting)
}

func (a *App) cmdModel(c tele.Context) error {
	current := a.ai.Current()
	var rows [][]keyboard.InlineBtn
	for _, m := range a.ai.Models() {
		label := fmt.Sprintf("%s — %s", m.Name, m.Description)
		if m.Name == current.Name {
			label = "✅ " + label
		}
		rows = append(rows, []keyboard.InlineBtn{
			{Text: label, Unique: cbModel, Data: m.Name},
		})
	}
	return tghelpers.SendHTML(c, textPickModel, keyboard.InlineButtonsRows(rows...))
}

func (a *App) cbSelectModel(c tele.Context) error {
	name := callbacks.CallbackPayload(c)
	m, err := a.ai.Select(name)
	if err != nil {
		return tghelpers.SendText(c, textModelUnknown)
	}
	return tghelpers.EditOrSendHTML(c,
		fmt.Sprintf("✅ Модель переключена: <b>%s</b>\n<i>%s</i>", m.Name, m.Description))
}

func (a *App) cmdClear(c tele.Context) error {
	a.ai.Clear(c.Sender().ID)
	return tghelpers.SendText(c, textCleared)
}

func (a *App) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}
	_ = c.Notify(tele.Typing)

	reply := a.ai.Ask(tghelpers.BuildContext(c), c.Sender().ID, text)
	for _, part := range ai.SplitMessage(reply, messageLimit) {
		if err := tghelpers.SendText(c, part); err != nil {
			return err
		}
	}
	return nil
}

// handlePhoto downloads the picture and parks it on the conversation so
// the next question to a vision model can reference it.
func (a *App) handlePhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	rc, err := c.Bot().File(&photo.File)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), "ai", "image.fetch.fail",
			slog.String("err", err.Error()))
		return tghelpers.SendText(c, textImageNoText)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), "ai", "image.read.fail",
			slog.String("err", err.Error()))
		return tghelpers.SendText(c, textImageNoText)
	}

	// Telegram re-encodes photo uploads as JPEG.
	a.ai.SetImage(c.Sender().ID, "image/jpeg", base64.StdEncoding.EncodeToString(data))

	if caption := strings.TrimSpace(c.Message().Caption); caption != "" {
		_ = c.Notify(tele.Typing)
		reply := a.ai.Ask(tghelpers.BuildContext(c), c.Sender().ID, caption)
		for _, part := range ai.SplitMessage(reply, messageLimit) {
			if err := tghelpers.SendText(c, part); err != nil {
				return err
			}
		}
		return nil
	}
	return tghelpers.SendText(c, textImageSaved)
}
