package model

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationFollow        NotificationType = "follow"
	NotificationMention       NotificationType = "mention"
	NotificationReblog        NotificationType = "reblog"
	NotificationFavourite     NotificationType = "favourite"
	NotificationPoll          NotificationType = "poll"
	NotificationFollowRequest NotificationType = "follow_request"
	NotificationStatus        NotificationType = "status"
	NotificationUpdate        NotificationType = "update"
	NotificationAdminSignup   NotificationType = "admin.signup"
	NotificationAdminReport   NotificationType = "admin.report"
	NotificationUnknown       NotificationType = "unknown"
)

// ParseNotificationType maps unrecognised values to NotificationUnknown.
func ParseNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case NotificationFollow, NotificationMention, NotificationReblog, NotificationFavourite,
		NotificationPoll, NotificationFollowRequest, NotificationStatus, NotificationUpdate,
		NotificationAdminSignup, NotificationAdminReport:
		return t
	default:
		return NotificationUnknown
	}
}

// Notification references an account and optionally a status.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	AccountID string           `json:"account_id"`
	StatusID  string           `json:"status_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n Notification) RecordKey() Key { return NotificationKey(n.ID) }
