package scenario

import (
	"sort"
	"time"
)

// LoadScenario は標準の負荷テストを返す
// 10秒で10VU、20秒で30VU、30秒で50VUまで増やし、20秒維持して5秒で0に戻す
func LoadScenario() Config {
	c := DefaultConfig()
	c.Name = "load"
	c.Description = "Ramp to 50 VUs across all seven domains"
	c.Stages = []Stage{
		{Duration: 10 * time.Second, Target: 10},
		{Duration: 20 * time.Second, Target: 30},
		{Duration: 30 * time.Second, Target: 50},
		{Duration: 20 * time.Second, Target: 50},
		{Duration: 5 * time.Second, Target: 0},
	}
	return c
}

// SmokeScenario は1VUでの疎通確認
func SmokeScenario() Config {
	c := DefaultConfig()
	c.Name = "smoke"
	c.Description = "Single VU for 30 seconds"
	c.StartVUs = 1
	c.Stages = []Stage{{Duration: 30 * time.Second, Target: 1}}
	return c
}

// StressScenario は高負荷シナリオを返す
func StressScenario() Config {
	c := DefaultConfig()
	c.Name = "stress"
	c.Description = "Ramp to 150 VUs and hold"
	c.Stages = []Stage{
		{Duration: 30 * time.Second, Target: 50},
		{Duration: 30 * time.Second, Target: 100},
		{Duration: 60 * time.Second, Target: 150},
		{Duration: 60 * time.Second, Target: 150},
		{Duration: 15 * time.Second, Target: 0},
	}
	c.GracefulStop = 10 * time.Second
	return c
}

// QuickScenario は短時間の動作確認用
// 何も指定されなかったときに使う
func QuickScenario() Config {
	c := DefaultConfig()
	c.Name = "quick"
	c.Description = "Quick check: 5 VUs for a few seconds"
	c.Stages = []Stage{
		{Duration: 5 * time.Second, Target: 5},
		{Duration: 5 * time.Second, Target: 0},
	}
	c.GracefulStop = 5 * time.Second
	return c
}

var presets = map[string]func() Config{
	"load":   LoadScenario,
	"smoke":  SmokeScenario,
	"stress": StressScenario,
	"quick":  QuickScenario,
}

// DefaultPreset は何も指定されなかったときのプリセット名
const DefaultPreset = "quick"

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
