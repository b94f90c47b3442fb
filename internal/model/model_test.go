package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantedByEncodings(t *testing.T) {
	byUser := GrantedBy{UserID: 123456}
	data, err := json.Marshal(byUser)
	require.NoError(t, err)
	assert.Equal(t, "123456", string(data))

	auto := GrantedBy{Auto: true}
	data, err = json.Marshal(auto)
	require.NoError(t, err)
	assert.Equal(t, `"auto_chat_join"`, string(data))

	var decoded GrantedBy
	require.NoError(t, json.Unmarshal([]byte("789"), &decoded))
	assert.Equal(t, int64(789), decoded.UserID)
	assert.False(t, decoded.Auto)

	require.NoError(t, json.Unmarshal([]byte(`"auto_chat_join"`), &decoded))
	assert.True(t, decoded.Auto)

	err = json.Unmarshal([]byte(`"someone_else"`), &decoded)
	assert.Error(t, err)
}

func TestUserNullLastDownloadPreserved(t *testing.T) {
	u := User{Username: "alice", NotificationsEnabled: true}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_download":null`)

	var decoded User
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.LastDownload)
}

func TestNewBuildID(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "1748779200", NewBuildID(at))
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryFree.Valid())
	assert.True(t, CategoryPaid.Valid())
	assert.False(t, Category("premium").Valid())
}
