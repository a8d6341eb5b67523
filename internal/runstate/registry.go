package runstate

import (
	"context"
	"fmt"
	"sync"
)

// Category は作成リソースの分類
type Category string

const (
	Courses  Category = "courses"
	Teachers Category = "teachers"
	Students Category = "students"
	Admins   Category = "admins"
	Programs Category = "programs"
	Sections Category = "sections"
)

// Categories はサマリー出力順のカテゴリ一覧を返す
func Categories() []Category {
	return []Category{Courses, Teachers, Students, Admins, Programs, Sections}
}

// Valid は既知のカテゴリかどうかを返す
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Registry は実行中に作成されたリソースIDを保持する
// 全メソッドは並行呼び出しに対して安全でなければならない
type Registry interface {
	Append(ctx context.Context, category Category, id int64) error
	Count(ctx context.Context, category Category) (int, error)
	IDs(ctx context.Context, category Category) ([]int64, error)
	Close() error
}

// MemoryRegistry はプロセス内のRegistry実装
type MemoryRegistry struct {
	mu  sync.Mutex
	ids map[Category][]int64
}

// NewMemoryRegistry は空のMemoryRegistryを作成する
func NewMemoryRegistry() *MemoryRegistry {
	ids := make(map[Category][]int64, len(Categories()))
	for _, c := range Categories() {
		ids[c] = nil
	}
	return &MemoryRegistry{ids: ids}
}

// Append はIDを追加する
func (r *MemoryRegistry) Append(_ context.Context, category Category, id int64) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category: %s", category)
	}

	r.mu.Lock()
	r.ids[category] = append(r.ids[category], id)
	r.mu.Unlock()
	return nil
}

// Count はカテゴリのID数を返す
func (r *MemoryRegistry) Count(_ context.Context, category Category) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids[category]), nil
}

// IDs はカテゴリのIDのコピーを追加順で返す
func (r *MemoryRegistry) IDs(_ context.Context, category Category) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids[category]...), nil
}

// Close は何もしない
func (r *MemoryRegistry) Close() error {
	return nil
}

// CategoryCount はサマリーの1行
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Summarize は全カテゴリの件数を固定順で返す
func Summarize(ctx context.Context, reg Registry) ([]CategoryCount, error) {
	summary := make([]CategoryCount, 0, len(Categories()))
	for _, c := range Categories() {
		n, err := reg.Count(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c, err)
		}
		summary = append(summary, CategoryCount{Category: c, Count: n})
	}
	return summary, nil
}
