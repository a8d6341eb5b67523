package domain

import (
	"context"
	"fmt"
	"strings"
)

// Domain はトップレベルのシナリオ区分
type Domain int

const (
	Admin Domain = iota
	Security
	Parametric
	Notification
	Log
	Integration
	Planning
	domainCount
)

var domainNames = [domainCount]string{
	Admin:        "admin",
	Security:     "security",
	Parametric:   "parametric",
	Notification: "notification",
	Log:          "log",
	Integration:  "integration",
	Planning:     "planning",
}

var runners = [domainCount]operation{
	Admin:        runAdmin,
	Security:     runSecurity,
	Parametric:   runParametric,
	Notification: runNotification,
	Log:          runLog,
	Integration:  runIntegration,
	Planning:     runPlanning,
}

// String はドメイン名を返す
func (d Domain) String() string {
	if d < 0 || d >= domainCount {
		return fmt.Sprintf("domain(%d)", int(d))
	}
	return domainNames[d]
}

// Valid は既知のドメインかどうかを返す
func (d Domain) Valid() bool {
	return d >= 0 && d < domainCount
}

// ParseDomain は名前からDomainを返す
func ParseDomain(s string) (Domain, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := range domainCount {
		if domainNames[d] == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown domain: %q", s)
}

// Domains は全ドメインを選択順に返す
func Domains() []Domain {
	out := make([]Domain, 0, domainCount)
	for d := range domainCount {
		out = append(out, d)
	}
	return out
}

// DefaultWeights はドメインごとの既定の重みを返す（合計95）
// 選択は合計値で正規化するので100である必要はない
func DefaultWeights() map[Domain]float64 {
	return map[Domain]float64{
		Admin:        14,
		Security:     10,
		Parametric:   5,
		Notification: 5,
		Log:          1,
		Integration:  30,
		Planning:     30,
	}
}

func (d Domain) run(ctx context.Context, s *session) {
	runners[d](ctx, s)
}
