package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	xerrors "ChainCounter/internal/errors"
	"ChainCounter/internal/interaction"
	"ChainCounter/internal/observability/metrics"
	"ChainCounter/internal/web3"
	"ChainCounter/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Controller 是 API 驱动的交互控制器能力。
type Controller interface {
	State() interaction.State
	Subscribe(fn func(interaction.State)) func()
	ConnectWallet(ctx context.Context) error
	Increment(ctx context.Context) error
	Decrement(ctx context.Context) error
	Reset(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// ChainInfo 提供链的概要信息。
type ChainInfo interface {
	FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error)
}

// Server 负责暴露 REST 与 WebSocket 接口，供浏览器或 CLI 驱动计数器会话。
type Server struct {
	addr     string
	ctrl     Controller
	chain    ChainInfo
	origins  []string
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// Option 定义可选配置。
type Option func(*Server)

// WithChainInfo 启用 /api/v1/chain。
func WithChainInfo(chain ChainInfo) Option {
	return func(s *Server) { s.chain = chain }
}

// WithAllowedOrigins 设置允许跨域访问的来源，"*" 表示任意来源。
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = append([]string(nil), origins...) }
}

// WithLogger 指定服务日志。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ctrl Controller, opts ...Option) *Server {
	s := &Server{
		addr: addr,
		ctrl: ctrl,
		log:  logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回带 CORS、请求 ID 与指标中间件的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("POST /api/v1/connect", s.action(s.ctrl.ConnectWallet))
	mux.HandleFunc("POST /api/v1/counter/increment", s.action(s.ctrl.Increment))
	mux.HandleFunc("POST /api/v1/counter/decrement", s.action(s.ctrl.Decrement))
	mux.HandleFunc("POST /api/v1/counter/reset", s.action(s.ctrl.Reset))
	mux.HandleFunc("POST /api/v1/counter/refresh", s.action(s.ctrl.Refresh))
	mux.HandleFunc("GET /api/v1/chain", s.handleChain)
	mux.HandleFunc("GET /api/v1/ws", s.handleStream)
	mux.Handle("GET /metrics", metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.instrument(mux))
}

// Response 是动作接口的响应体。
type Response struct {
	State interaction.State `json:"state"`
	Error *ErrorBody        `json:"error,omitempty"`
}

// ErrorBody 描述失败原因。
type ErrorBody struct {
	Code    xerrors.Code `json:"code"`
	Message string       `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{State: s.ctrl.State()})
}

func (s *Server) action(run func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r.Context()); err != nil {
			writeJSON(w, xerrors.StatusOf(err), Response{
				State: s.ctrl.State(),
				Error: &ErrorBody{Code: xerrors.CodeOf(err), Message: xerrors.DetailOf(err)},
			})
			return
		}
		writeJSON(w, http.StatusOK, Response{State: s.ctrl.State()})
	}
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	if s.chain == nil {
		http.Error(w, "链信息不可用", http.StatusServiceUnavailable)
		return
	}
	snapshot, err := s.chain.FetchChainSnapshot(r.Context())
	if err != nil {
		wrapped := xerrors.Wrap(xerrors.CodeChainFailure, err, "")
		writeJSON(w, wrapped.HTTPStatus(), map[string]ErrorBody{
			"error": {Code: wrapped.Code(), Message: wrapped.Detail()},
		})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
