package conversation

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dimanchick22/alicebot/db/models"
)

// SQLite stores one row per turn. Ordering rides on the rowid, so Get
// returns turns in insertion order without a separate sequence column.
type SQLite struct {
	gdb    *gorm.DB
	limits Limits
}

// NewSQLite wraps an opened database. The caller owns opening (db.Open)
// so the cmd layer controls pragmas and migration.
func NewSQLite(gdb *gorm.DB, limits Limits) *SQLite {
	return &SQLite{gdb: gdb, limits: limits.normalized()}
}

func (s *SQLite) Get(ctx context.Context, chatID int64) ([]Turn, error) {
	var rows []models.ConversationTurn
	err := s.gdb.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite get conversation %d: %w", chatID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	turns := make([]Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, Turn{Role: row.Role, Content: row.Content, Timestamp: row.CreatedAt})
	}
	return turns, nil
}

func (s *SQLite) Append(ctx context.Context, chatID int64, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	turns = withTimestamps(turns)

	var existing int64
	err := s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Where("chat_id = ?", chatID).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("sqlite count conversation %d: %w", chatID, err)
	}
	if existing == 0 {
		if err := s.evict(ctx); err != nil {
			return err
		}
	}

	rows := make([]models.ConversationTurn, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, models.ConversationTurn{
			ChatID:    chatID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.Timestamp,
		})
	}
	if err := s.gdb.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("sqlite append conversation %d: %w", chatID, err)
	}

	keep := s.gdb.Model(&models.ConversationTurn{}).
		Select("id").
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(s.limits.MaxTurns)
	err = s.gdb.WithContext(ctx).
		Where("chat_id = ? AND id NOT IN (?)", chatID, keep).
		Delete(&models.ConversationTurn{}).Error
	if err != nil {
		return fmt.Errorf("sqlite trim conversation %d: %w", chatID, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context, chatID int64) error {
	err := s.gdb.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&models.ConversationTurn{}).Error
	if err != nil {
		return fmt.Errorf("sqlite clear conversation %d: %w", chatID, err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Distinct("chat_id").
		Order("chat_id ASC").
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite list conversations: %w", err)
	}
	return ids, nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "sqlite"}

	var turns int64
	if err := s.gdb.WithContext(ctx).Model(&models.ConversationTurn{}).Count(&turns).Error; err != nil {
		return Stats{}, fmt.Errorf("sqlite count turns: %w", err)
	}
	st.Turns = int(turns)

	var chats int64
	err := s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Distinct("chat_id").
		Count(&chats).Error
	if err != nil {
		return Stats{}, fmt.Errorf("sqlite count conversations: %w", err)
	}
	st.Conversations = int(chats)

	var active int64
	err = s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Where("created_at >= ?", startOfToday(time.Now())).
		Distinct("chat_id").
		Count(&active).Error
	if err != nil {
		return Stats{}, fmt.Errorf("sqlite count active conversations: %w", err)
	}
	st.ActiveToday = int(active)
	return st, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// evict deletes every row of the oldest-updated chats once the cap is
// reached.
func (s *SQLite) evict(ctx context.Context) error {
	var chats int64
	err := s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Distinct("chat_id").
		Count(&chats).Error
	if err != nil {
		return fmt.Errorf("sqlite count conversations: %w", err)
	}
	if int(chats) < s.limits.MaxConversations {
		return nil
	}

	drop := int(chats) - s.limits.evictTarget()
	var ids []int64
	err = s.gdb.WithContext(ctx).
		Model(&models.ConversationTurn{}).
		Group("chat_id").
		Order("MAX(created_at) ASC").
		Limit(drop).
		Pluck("chat_id", &ids).Error
	if err != nil {
		return fmt.Errorf("sqlite list oldest conversations: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	err = s.gdb.WithContext(ctx).
		Where("chat_id IN ?", ids).
		Delete(&models.ConversationTurn{}).Error
	if err != nil {
		return fmt.Errorf("sqlite evict conversations: %w", err)
	}
	return nil
}
