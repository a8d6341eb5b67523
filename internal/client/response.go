package client

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmespath/go-jmespath"

	"secchub-loadtest/internal/errs"
)

// Response はAPI呼び出しの結果
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
	Err      error // 転送エラー。HTTPステータスの失敗は含まない

	once     sync.Once
	parsed   any
	parseErr error
}

// Failed は転送エラーまたは4xx/5xxのときtrueを返す
func (r *Response) Failed() bool {
	return r.Err != nil || r.Status >= 400 || r.Status == 0
}

// ContentType はContent-Typeヘッダーを返す
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// JSON は本文をJSONとして解析する。結果はキャッシュされる
func (r *Response) JSON() (any, error) {
	r.once.Do(func() {
		if r.Err != nil {
			r.parseErr = errs.Parse("json", "no body", r.Err)
			return
		}
		if len(bytes.TrimSpace(r.Body)) == 0 {
			r.parseErr = errs.Parse("json", "empty body", nil)
			return
		}
		if err := json.Unmarshal(r.Body, &r.parsed); err != nil {
			r.parseErr = errs.Parse("json", "malformed body", err)
		}
	})
	return r.parsed, r.parseErr
}

// Field はJMESPath式で値を取り出す。解析失敗または値なしなら false
func (r *Response) Field(expr string) (any, bool) {
	data, err := r.JSON()
	if err != nil {
		return nil, false
	}
	v, err := jmespath.Search(expr, data)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Has はフィールドが存在するかどうかを返す
func (r *Response) Has(expr string) bool {
	_, ok := r.Field(expr)
	return ok
}

// Int はフィールドを整数として返す
func (r *Response) Int(expr string) (int64, bool) {
	v, ok := r.Field(expr)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// String はフィールドを文字列として返す
func (r *Response) String(expr string) (string, bool) {
	v, ok := r.Field(expr)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ID は "id" フィールドを返す
func (r *Response) ID() (int64, bool) {
	return r.Int("id")
}

// BodyInt は本文全体を整数として解析する（登録APIはIDのみを返す）
func (r *Response) BodyInt() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(r.Body)), 10, 64)
	return n, err == nil
}

// Array は本文がJSON配列ならその要素を返す
func (r *Response) Array() ([]any, bool) {
	data, err := r.JSON()
	if err != nil {
		return nil, false
	}
	arr, ok := data.([]any)
	return arr, ok
}

// NDJSONLines は空でない行の数を返す
func (r *Response) NDJSONLines() int {
	n := 0
	for _, line := range bytes.Split(r.Body, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}
