// Package scenario はステージ制の負荷テストを実行する。
//
// Engine はセットアップで管理者としてログインし、ステージに従って
// VU数を増減させながら各VUにイテレーションを実行させる。
// 全ステージが終わると作成したリソース数をまとめ、合否条件を評価する。
//
// # 機能
//
// - ステージ（Duration, Target）に沿った線形ランプ
// - 終了時の猶予時間（GracefulStop）
// - メトリクスに対する合否条件（Thresholds）
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - load: 50VUまでのランプ
// - smoke: 1VUで30秒
// - stress: 150VUまでのランプ
// - quick: 短時間の動作確認（デフォルト）
//
// # 使用例
//
//	config, _ := scenario.GetPreset("load")
//	config.BaseURL = "http://localhost:8080"
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
//	if !result.Passed() {
//	    os.Exit(1)
//	}
package scenario
