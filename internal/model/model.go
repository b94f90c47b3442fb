// Package model declares the records stored in the catalog bot's JSON
// documents. Field tags match the historical document layout, so existing
// data files keep loading unchanged.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Category classifies a build as freely downloadable or sold for money.
type Category string

const (
	CategoryFree Category = "free"
	CategoryPaid Category = "paid"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	return c == CategoryFree || c == CategoryPaid
}

// Build is a published catalog entry.
type Build struct {
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Description  string   `json:"description"`
	CoverURL     string   `json:"cover_url"`
	DownloadLink string   `json:"download_link"`
	Category     Category `json:"category"`
	Price        int      `json:"price"`
	Contact      string   `json:"contact"`
	AddedBy      int64    `json:"added_by"`
	AddedAt      string   `json:"added_at"`
	BuildID      string   `json:"build_id"`
}

// PendingBuild is a submission awaiting moderation.
type PendingBuild struct {
	Build
	RequesterID       int64  `json:"requester_id"`
	RequesterUsername string `json:"requester_username"`
}

// User is a bot user record keyed by the decimal user id.
type User struct {
	Username             string     `json:"username"`
	FirstName            string     `json:"first_name"`
	LastDownload         *time.Time `json:"last_download"`
	DownloadsCount       int        `json:"downloads_count"`
	RegisteredAt         string     `json:"registered_at"`
	PaidResets           int        `json:"paid_resets"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	LastBuild            string     `json:"last_build,omitempty"`
}

// GrantedBy records who granted admin rights: a user id, or the marker
// written when the promotion came from joining the staff chat.
type GrantedBy struct {
	UserID int64
	Auto   bool
}

const autoChatJoin = "auto_chat_join"

// MarshalJSON writes either the numeric id or the auto-promotion marker.
func (g GrantedBy) MarshalJSON() ([]byte, error) {
	if g.Auto {
		return json.Marshal(autoChatJoin)
	}
	return json.Marshal(g.UserID)
}

// UnmarshalJSON accepts both historical encodings.
func (g *GrantedBy) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		g.UserID = id
		g.Auto = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("model: granted_by: %w", err)
	}
	if s != autoChatJoin {
		return fmt.Errorf("model: granted_by: unexpected value %q", s)
	}
	g.Auto = true
	return nil
}

// Admin is a delegated admin record keyed by the decimal user id.
// The main admin is configured, never stored.
type Admin struct {
	Username     string    `json:"username"`
	BuildsAdded  int       `json:"builds_added"`
	AddedBy      GrantedBy `json:"added_by"`
	AddedAt      string    `json:"added_at"`
	ChatJoinDate string    `json:"chat_join_date,omitempty"`
}

// Stats is the cached counters document.
type Stats struct {
	TotalUsers      int    `json:"total_users"`
	TotalDownloads  int    `json:"total_downloads"`
	BuildsAdded     int    `json:"builds_added"`
	PaidBuildsSold  int    `json:"paid_builds_sold"`
	TotalResets     int    `json:"total_resets"`
	LastUpdated     string `json:"last_updated"`
	PaidBuildsCount int    `json:"paid_builds_count"`
	FreeBuildsCount int    `json:"free_builds_count"`
	LastSync        string `json:"last_sync,omitempty"`
}

// NotificationDownloadAvailable marks a download-cooldown-expired notice.
const NotificationDownloadAvailable = "download_available"

// Notification is a scheduled message; Sent flips only after delivery.
type Notification struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	Type          string    `json:"type"`
	ScheduledTime time.Time `json:"scheduled_time"`
	CreatedAt     time.Time `json:"created_at"`
	Sent          bool      `json:"sent"`
}

// Document aliases for the store.
type (
	Users         = map[string]*User
	Builds        = map[string]*Build
	Admins        = map[string]*Admin
	PendingBuilds = map[string]*PendingBuild
	Notifications = []Notification
)

// UserKey converts a Telegram user id to its document key.
func UserKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseUserKey converts a document key back to a user id.
func ParseUserKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}

// NewBuildID derives a build id from the creation time.
func NewBuildID(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// Timestamp formats t the way the documents historically stored times.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
