package repository

import "errors"

// 永続化層のセンチネルエラー。サービス層でerrors.Isにより判定する。
var (
	// ErrDuplicateEmail はemailユニーク制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrDuplicateIdentity は(provider, provider_user_id)ユニーク制約違反を表す。
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrNoteNotFound は対象ノートが存在しないことを表す。
	ErrNoteNotFound = errors.New("note not found")
)
