// Package errs classifies failures by how far they are allowed to propagate.
package errs

import (
	"errors"
	"fmt"
)

// Kind はエラーの伝播範囲を表す
type Kind int

const (
	// KindRecoverable は1回のリクエスト失敗。メトリクスに記録して続行する
	KindRecoverable Kind = iota
	// KindFatal は実行全体を中止する
	KindFatal
	// KindDegraded は副ロールの認証失敗。依存ステップのみスキップする
	KindDegraded
	// KindParse はレスポンスの解析失敗。チェック失敗と同じ扱い
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRecoverable:
		return "recoverable"
	case KindDegraded:
		return "degraded"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error は分類付きのエラー
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is は同じKindとMessageを持つ*Errorと一致する
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == e.Op && t.Message == e.Message
}

// New は新しいErrorを作成する
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Fatal は実行中止エラーを作成する
func Fatal(op, message string, cause error) *Error {
	return New(KindFatal, op, message, cause)
}

// Recoverable は続行可能なエラーを作成する
func Recoverable(op, message string, cause error) *Error {
	return New(KindRecoverable, op, message, cause)
}

// Degraded は副ロール認証の失敗を作成する
func Degraded(op, message string, cause error) *Error {
	return New(KindDegraded, op, message, cause)
}

// Parse は解析エラーを作成する
func Parse(op, message string, cause error) *Error {
	return New(KindParse, op, message, cause)
}

// ErrMissingToken はトークンなしでイテレーションが呼ばれたことを示す
var ErrMissingToken = Fatal("iteration", "auth token is missing", nil)

// KindOf はエラーチェーンから最初のKindを返す。分類なしはKindRecoverable
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRecoverable
}

// IsKind はエラーが指定Kindかどうかを返す
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsFatal は実行中止すべきエラーかどうかを返す
func IsFatal(err error) bool {
	return IsKind(err, KindFatal)
}
