// Package models holds the gorm table definitions for the sqlite backend.
package models

import "time"

// ConversationTurn is one stored utterance, one row per turn. A chat's
// history is its rows in insertion order.
type ConversationTurn struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    int64  `gorm:"index"`
	Role      string `gorm:"size:16"`
	Content   string
	CreatedAt time.Time `gorm:"index"`
}
