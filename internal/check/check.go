// Package check evaluates named assertions against API responses.
package check

import (
	"fmt"
	"reflect"
	"strings"

	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/metrics"
)

// Check は名前付きの真偽判定
type Check struct {
	Name string
	Fn   func(*client.Response) bool
}

// Result は1つのCheckの結果
type Result struct {
	Name   string
	Passed bool
}

// Evaluate は全てのCheckを評価する。途中で失敗しても残りを評価する
func Evaluate(resp *client.Response, checks ...Check) (bool, []Result) {
	ok := true
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		passed := safeEval(c, resp)
		results = append(results, Result{Name: c.Name, Passed: passed})
		ok = ok && passed
	}
	return ok, results
}

// Run は全てのCheckを評価し、結果を checks レートに記録する
func Run(reg *metrics.Registry, resp *client.Response, checks ...Check) bool {
	ok, results := Evaluate(resp, checks...)
	if reg != nil {
		rate := reg.Rate(metrics.Checks)
		for _, r := range results {
			rate.Add(r.Passed)
		}
	}
	return ok
}

func safeEval(c Check, resp *client.Response) (passed bool) {
	defer func() {
		if r := recover(); r != nil {
			passed = false
		}
	}()
	return c.Fn(resp)
}

// Custom は任意の判定を作成する
func Custom(name string, fn func(*client.Response) bool) Check {
	return Check{Name: name, Fn: fn}
}

// Status はステータスコードがいずれかに一致するか判定する
func Status(name string, codes ...int) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		if r.Err != nil {
			return false
		}
		for _, code := range codes {
			if r.Status == code {
				return true
			}
		}
		return false
	}}
}

// StatusNot はステータスコードが指定値でないか判定する
func StatusNot(name string, code int) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		return r.Err == nil && r.Status != code
	}}
}

// Has はフィールドが存在するか判定する
func Has(name, expr string) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		return r.Has(expr)
	}}
}

// Equals はフィールドが期待値と等しいか判定する
// 数値はJSONの float64 に揃えて比較する
func Equals(name, expr string, want any) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		got, ok := r.Field(expr)
		if !ok {
			return false
		}
		return equalJSON(got, want)
	}}
}

// IsArray は本文がJSON配列か判定する
func IsArray(name string) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		_, ok := r.Array()
		return ok
	}}
}

// NonEmptyArray は本文が要素を持つJSON配列か判定する
func NonEmptyArray(name string) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		arr, ok := r.Array()
		return ok && len(arr) > 0
	}}
}

// BodyNotEmpty は本文が空でないか判定する
func BodyNotEmpty(name string) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		return r.Err == nil && len(strings.TrimSpace(string(r.Body))) > 0
	}}
}

// ContentType はContent-Typeが部分文字列を含むか判定する
func ContentType(name, substr string) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		return strings.Contains(r.ContentType(), substr)
	}}
}

// NDJSONLines は空でない行が atLeast 行以上あるか判定する
func NDJSONLines(name string, atLeast int) Check {
	return Check{Name: name, Fn: func(r *client.Response) bool {
		return r.Err == nil && r.NDJSONLines() >= atLeast
	}}
}

func equalJSON(got, want any) bool {
	switch w := want.(type) {
	case int:
		return equalJSON(got, float64(w))
	case int64:
		return equalJSON(got, float64(w))
	case float64:
		g, ok := got.(float64)
		return ok && g == w
	case string:
		g, ok := got.(string)
		return ok && g == w
	case fmt.Stringer:
		g, ok := got.(string)
		return ok && g == w.String()
	default:
		return reflect.DeepEqual(got, want)
	}
}
