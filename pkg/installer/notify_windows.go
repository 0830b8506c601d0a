//go:build windows
// +build windows

package installer

import (
	"gopkg.in/toast.v1"
)

// notify shows a toast in the action center.
func notify(appID, title, message, icon string) error {
	notification := toast.Notification{
		AppID:   appID,
		Title:   title,
		Message: message,
		Actions: []toast.Action{},
	}

	if icon != "" {
		notification.Icon = icon
	}

	return notification.Push()
}
