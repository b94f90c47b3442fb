package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	reply  string
	err    error
	params []anthropic.MessageNewParams
}

func (f *fakeAPI) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.reply}},
	}, nil
}

func testModels() []Model {
	return []Model{
		{Name: "vision", RemoteID: "model-vision", Vision: true},
		{Name: "text", RemoteID: "model-text", Vision: false},
	}
}

func newTestService(api *fakeAPI, limit int) *Service {
	return newService(api, testModels(), Options{HistoryLimit: limit, MaxTokens: 256})
}

func TestAskAppendsBothTurns(t *testing.T) {
	api := &fakeAPI{reply: "hello there"}
	svc := newTestService(api, 10)

	reply := svc.Ask(context.Background(), 1, "hi")
	assert.Equal(t, "hello there", reply)

	history := svc.History(1)
	require.Len(t, history, 2)
	assert.Equal(t, Turn{Role: RoleUser, Content: "hi"}, history[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello there"}, history[1])
}

func TestAskFailureReturnsApologyWithoutMutatingHistory(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	svc := newTestService(api, 10)
	svc.Ask(context.Background(), 1, "first")

	api.err = errors.New("429 quota exhausted")
	reply := svc.Ask(context.Background(), 1, "second")
	assert.Equal(t, Apology, reply)
	assert.Len(t, svc.History(1), 2)
}

func TestHistoryTrimsOldestFirst(t *testing.T) {
	api := &fakeAPI{reply: "r"}
	svc := newTestService(api, 4)

	for _, msg := range []string{"a", "b", "c"} {
		svc.Ask(context.Background(), 1, msg)
	}

	history := svc.History(1)
	require.Len(t, history, 4)
	assert.Equal(t, "b", history[0].Content)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "c", history[2].Content)
}

func TestImageAttachedOnlyForVisionModels(t *testing.T) {
	api := &fakeAPI{reply: "r"}
	svc := newTestService(api, 10)
	svc.SetImage(1, "image/jpeg", "aGVsbG8=")

	svc.Ask(context.Background(), 1, "what is this")
	require.Len(t, api.params, 1)
	last := api.params[0].Messages[len(api.params[0].Messages)-1]
	assert.Len(t, last.Content, 2)

	_, err := svc.Select("text")
	require.NoError(t, err)
	svc.Ask(context.Background(), 1, "and now")
	last = api.params[1].Messages[len(api.params[1].Messages)-1]
	assert.Len(t, last.Content, 1)
}

func TestSelectUnknownModel(t *testing.T) {
	svc := newTestService(&fakeAPI{reply: "r"}, 10)
	_, err := svc.Select("gpt")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Equal(t, "vision", svc.Current().Name)
}

func TestClearDropsHistoryAndImage(t *testing.T) {
	api := &fakeAPI{reply: "r"}
	svc := newTestService(api, 10)
	svc.SetImage(1, "image/png", "data")
	svc.Ask(context.Background(), 1, "hi")

	svc.Clear(1)
	assert.Empty(t, svc.History(1))

	svc.Ask(context.Background(), 1, "again")
	last := api.params[len(api.params)-1].Messages
	assert.Len(t, last, 1)
	assert.Len(t, last[0].Content, 1)
}

func TestSplitMessage(t *testing.T) {
	parts := SplitMessage("short", 4000)
	assert.Equal(t, []string{"short"}, parts)

	long := strings.Repeat("a", 4500)
	parts = SplitMessage(long, 4000)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 4000)
	assert.Len(t, parts[1], 500)

	// Prefers breaking on a newline past the midpoint.
	text := strings.Repeat("x", 3000) + "\n" + strings.Repeat("y", 2000)
	parts = SplitMessage(text, 4000)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("y", 2000), parts[1])
}

func TestSplitMessageKeepsMultibyteRunesWhole(t *testing.T) {
	// "д" is two bytes, so a byte-position cut at 4000 would land
	// mid-rune; every chunk must stay valid UTF-8.
	long := "a" + strings.Repeat("д", 4500)
	parts := SplitMessage(long, 4000)
	require.Greater(t, len(parts), 1)
	for i, part := range parts {
		assert.True(t, utf8.ValidString(part), "part %d is invalid UTF-8", i)
		assert.LessOrEqual(t, len(part), 4000)
	}
	assert.Equal(t, long, strings.Join(parts, ""))

	// max smaller than a single rune still makes progress.
	parts = SplitMessage("дд", 1)
	assert.Equal(t, []string{"д", "д"}, parts)
}
