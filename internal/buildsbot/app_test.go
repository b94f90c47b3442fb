package buildsbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coretelegram "buildsbot/core/telegram"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &Config{
		Staff: StaffConfig{ChatID: -200},
		Store: StoreConfig{Dir: t.TempDir()},
	}
	cfg.Core.Telegram.AdminID = 1000
	app, err := New(cfg)
	require.NoError(t, err)
	return app
}

func TestRegisteredCommands(t *testing.T) {
	app := newTestApp(t)
	reg := coretelegram.NewRegistry()
	app.registerCommands(reg)

	expected := []string{
		"/start", "/admin", "/help", "/admininfo", "/syncstats",
		"/removeadmin", "/advert", "/clearkeyboard", "/clean",
	}
	for _, name := range expected {
		_, _, ok := reg.LookupCommand(name)
		assert.True(t, ok, "command %s not registered", name)
	}

	// Staff housekeeping and admin tooling stay out of the public menu.
	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "/start", visible[0].Text)
}
