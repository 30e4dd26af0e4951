package store

import (
	"github.com/google/uuid"

	"aibook/internal/model"
)

// AddNotification creates a pending image-post request for the character.
func (g *Graph) AddNotification(characterID, imagePrompt, postContent string) (model.Notification, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charIndex[characterID]; !ok {
		return model.Notification{}, false
	}
	n := model.Notification{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		ImagePrompt: imagePrompt,
		PostContent: postContent,
		Status:      model.NotificationPending,
		CreatedAt:   g.now().UTC(),
	}
	g.notifications = append([]model.Notification{n}, g.notifications...)
	return n, true
}

// Notification returns a copy of the notification with the given ID.
func (g *Graph) Notification(id string) (model.Notification, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.notifications {
		if g.notifications[i].ID == id {
			return g.notifications[i], true
		}
	}
	return model.Notification{}, false
}

// Notifications returns copies of all notifications, newest first.
func (g *Graph) Notifications() []model.Notification {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Notification, len(g.notifications))
	copy(out, g.notifications)
	return out
}

// ResolveNotification transitions a pending notification to a terminal
// status. Resolving an unknown or already-resolved notification is a no-op
// and returns ok=false.
func (g *Graph) ResolveNotification(id string, status model.NotificationStatus) (model.Notification, bool) {
	if status != model.NotificationApproved && status != model.NotificationRejected {
		return model.Notification{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.notifications {
		if g.notifications[i].ID != id {
			continue
		}
		if g.notifications[i].Status != model.NotificationPending {
			return model.Notification{}, false
		}
		g.notifications[i].Status = status
		return g.notifications[i], true
	}
	return model.Notification{}, false
}
