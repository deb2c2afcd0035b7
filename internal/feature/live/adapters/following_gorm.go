// Package adapters はliveフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// UserFollowing is a (user, symbol) subscription. Rows are owned by the
// account service; this package only reads them.
type UserFollowing struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	SymbolID  uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserFollowing) TableName() string {
	return "user_followings"
}

type followingGorm struct {
	db *gorm.DB
}

// NewFollowingRepository はフォロー銘柄の読み取りリポジトリを生成します。
func NewFollowingRepository(db *gorm.DB) *followingGorm {
	return &followingGorm{db: db}
}

// FollowedSymbols はユーザーがフォローしている銘柄コードを返します。
func (r *followingGorm) FollowedSymbols(ctx context.Context, userID uint) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Table("user_followings AS f").
		Joins("JOIN symbols AS s ON s.id = f.symbol_id").
		Where("f.user_id = ?", userID).
		Order("s.code ASC").
		Pluck("s.code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}
