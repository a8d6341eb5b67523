package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"secchub-loadtest/internal/config"
	"secchub-loadtest/internal/events"
	"secchub-loadtest/internal/history"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/scenario"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr    string
	base    scenario.Config
	bus     *events.Bus
	history *history.Store

	mu         sync.RWMutex
	engine     *scenario.Engine
	lastResult *scenario.Result
	lastErr    error
	done       chan struct{}
	wsClients  map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// base はリクエストで指定されなかった接続先や認証情報に使う
func NewServer(addr string, base scenario.Config) *Server {
	return &Server{
		addr:      addr,
		base:      base,
		bus:       events.NewBus(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// SetHistory は完了した実行の保存先を設定する
func (s *Server) SetHistory(store *history.Store) {
	s.history = store
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/result", s.handleResult)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/run/start", s.handleRunStart)
	mux.HandleFunc("/api/run/stop", s.handleRunStop)

	// Prometheus
	mux.HandleFunc("/metrics", s.handlePrometheus)

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する。ctxが終わるとシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// バックグラウンドでイベントとステータスを配信
	go s.eventLoop(ctx)
	go s.broadcastLoop(ctx)

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.bus.Close()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop は実行中のシナリオを停止する
func (s *Server) Stop() {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine != nil {
		engine.Stop()
	}
}

// Wait は実行中のシナリオの終了を待つ
func (s *Server) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	scenario.Status
	LastRunID  string `json:"last_run_id,omitempty"`
	LastPassed *bool  `json:"last_passed,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resp StatusResponse
	if s.engine != nil {
		resp.Status = s.engine.Status()
	}
	if s.lastResult != nil {
		passed := s.lastResult.Passed()
		resp.LastRunID = s.lastResult.RunID
		resp.LastPassed = &passed
	}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status())
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	Iterations *metrics.IterationSnapshot `json:"iterations,omitempty"`
	Metrics    metrics.Snapshot           `json:"metrics"`
}

func (s *Server) currentMetrics() *metrics.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Metrics()
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reg := s.currentMetrics()
	if reg == nil {
		http.Error(w, "No run has been started", http.StatusNotFound)
		return
	}

	resp := MetricsResponse{
		Iterations: s.status().Iterations,
		Metrics:    reg.Snapshot(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	var gatherer prometheus.Gatherer = prometheus.NewRegistry()
	if reg := s.currentMetrics(); reg != nil && reg.Gatherer() != nil {
		gatherer = reg.Gatherer()
	}
	promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No finished run", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		logger.Error("", "Failed to list history: %v", err)
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	PeakVUs     int    `json:"peak_vus"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		c, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Description: c.Description,
			Duration:    c.TotalDuration().String(),
			PeakVUs:     c.PeakVUs(),
		})
	}

	s.writeJSON(w, http.StatusOK, presets)
}

// resolve はリクエストを実行設定に変換する
// 接続先、認証情報、保存先はリクエストで指定がなければサーバーの設定を使う
func (s *Server) resolve(req config.ScenarioConfig) (scenario.Config, error) {
	if req.Preset == "" && len(req.Stages) == 0 {
		req.Preset = scenario.DefaultPreset
	}

	file := &config.FileConfig{Scenario: req}
	if err := file.Validate(); err != nil {
		return scenario.Config{}, err
	}
	cfg, err := file.ToScenarioConfig()
	if err != nil {
		return scenario.Config{}, err
	}

	if req.BaseURL == "" {
		cfg.BaseURL = s.base.BaseURL
	}
	if req.Credentials == nil {
		cfg.Credentials = s.base.Credentials
	}
	if len(req.Roles) == 0 {
		cfg.Roles = s.base.Roles
	}
	if req.Registry.Backend == "" {
		cfg.RegistryBackend = s.base.RegistryBackend
		cfg.RedisAddr = s.base.RedisAddr
	}
	return cfg, cfg.Validate()
}

func (s *Server) handleRunStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req config.ScenarioConfig
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	cfg, err := s.resolve(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.engine != nil && s.done != nil {
		select {
		case <-s.done:
		default:
			s.mu.Unlock()
			http.Error(w, "Scenario already running", http.StatusConflict)
			return
		}
	}

	engine := scenario.New(cfg)
	engine.SetEventBus(s.bus)
	engine.SetMetrics(metrics.NewRegistry(metrics.DefaultRegistryConfig()))
	done := make(chan struct{})
	s.engine = engine
	s.done = done
	s.mu.Unlock()

	// バックグラウンドで実行
	go s.run(engine, done)

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "scenario": cfg.Name})
}

func (s *Server) run(engine *scenario.Engine, done chan struct{}) {
	defer close(done)

	result, err := engine.Run(context.Background())

	s.mu.Lock()
	s.lastErr = err
	if result != nil {
		s.lastResult = result
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("", "Scenario failed: %v", err)
		s.broadcast(map[string]any{"type": "run_failed", "error": err.Error()})
		return
	}

	logger.Info("", "Scenario completed: %d iterations, %d requests", result.Iterations.Total, result.HTTPRequests)
	if s.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.history.Save(ctx, history.FromResult(result)); err != nil {
			logger.Warn("", "Failed to save run history: %v", err)
		}
		cancel()
	}

	s.broadcast(map[string]any{
		"type":   "run_complete",
		"result": result,
	})
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil || !engine.IsRunning() {
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	engine.Stop()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// eventLoop はイベントバスのイベントをWebSocketクライアントへ転送する
func (s *Server) eventLoop(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}
			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
