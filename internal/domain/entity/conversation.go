package entity

import "time"

type Conversation struct {
	ID            string    `json:"id" firestore:"id"`
	Participants  []string  `json:"participants" firestore:"participants"`
	ListingID     string    `json:"listing_id,omitempty" firestore:"listingId,omitempty"`
	LastMessage   string    `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadBy      []string  `json:"unread_by" firestore:"unreadBy"`
	CreatedAt     time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	return containsString(c.Participants, userID)
}

// OtherParticipant returns the counterpart of userID in a two-party thread.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Recipients lists every participant except senderID.
func (c *Conversation) Recipients(senderID string) []string {
	var out []string
	for _, p := range c.Participants {
		if p != senderID {
			out = append(out, p)
		}
	}
	return out
}

func (c *Conversation) AddUnread(userIDs ...string) {
	for _, u := range userIDs {
		if !containsString(c.UnreadBy, u) {
			c.UnreadBy = append(c.UnreadBy, u)
		}
	}
}

func (c *Conversation) MarkRead(userID string) {
	kept := c.UnreadBy[:0]
	for _, u := range c.UnreadBy {
		if u != userID {
			kept = append(kept, u)
		}
	}
	c.UnreadBy = kept
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// ConversationIDFor derives the id of the single thread between two users, so
// concurrent "create if absent" calls converge on one document.
func ConversationIDFor(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
