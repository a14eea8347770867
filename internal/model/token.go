package model

import "time"

// TokenPair はアクセストークンとリフレッシュトークンの組を表す。
// 行として永続化されず、発行のたびに生成される。
type TokenPair struct {
	Access  string
	Refresh string
}

// RevokedToken はローテーション済みリフレッシュトークンの失効記録を表す。
// jti単位でデナイリストに登録し、expires_at経過後は削除可能。
type RevokedToken struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}
