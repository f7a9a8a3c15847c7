package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// Repo 持久化对话轮次
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertTurn(ctx context.Context, t *chat.TurnRecord) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ListTurns returns one conversation's turns oldest first.
func (r *Repo) ListTurns(ctx context.Context, username, conversationID string) ([]chat.TurnRecord, error) {
	var turns []chat.TurnRecord
	if err := r.db.WithContext(ctx).
		Where("username = ? AND conversation_id = ?", username, conversationID).
		Order("created_at ASC, id ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// ListUserTurns returns every turn of a user oldest first.
func (r *Repo) ListUserTurns(ctx context.Context, username string) ([]chat.TurnRecord, error) {
	var turns []chat.TurnRecord
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at ASC, id ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}
