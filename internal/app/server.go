package app

// server.go 负责装配依赖并启动 HTTP 路由（管理 API 入口）。
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zcw199604/evolution-bridge/internal/config"
	"github.com/zcw199604/evolution-bridge/internal/evolution"
	"github.com/zcw199604/evolution-bridge/internal/notify"
	"github.com/zcw199604/evolution-bridge/internal/store"
)

type Server struct {
	cfg    config.Config
	server *http.Server

	instances map[string]*Instance
	notifier  *notify.Notifier
	refresher *Refresher
	poller    *Poller
}

func NewServer(cfg config.Config) (*Server, error) {
	httpClient := &http.Client{
		Timeout: cfg.Server.HTTPClientTimeout.ToDuration(),
	}

	instances := make(map[string]*Instance, len(cfg.Instances))
	instanceList := make([]*Instance, 0, len(cfg.Instances))
	for _, ins := range cfg.Instances {
		verifySSL := ins.VerifySSL == nil || *ins.VerifySSL
		client, err := evolution.NewClient(evolution.ClientConfig{
			ServerURL:          ins.ServerURL,
			InstanceID:         ins.InstanceID,
			APIKey:             ins.APIKey,
			InsecureSkipVerify: !verifySSL,
		}, httpClient)
		if err != nil {
			return nil, err
		}

		st := store.New(cfg.Storage.DataDir, ins.ID)
		if _, err := st.Load(); err != nil {
			return nil, err
		}

		item := &Instance{ID: ins.ID, Client: client, Store: st}
		instances[ins.ID] = item
		instanceList = append(instanceList, item)
	}

	notifier := notify.NewNotifier()
	refresher := NewRefresher(notifier)
	poller := NewPoller(cfg.Refresh.ConnectionInterval.ToDuration(), refresher, instanceList)

	s := &Server{
		cfg:       cfg,
		instances: instances,
		notifier:  notifier,
		refresher: refresher,
		poller:    poller,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/instances/{instance}/send/text", s.handleSendText)
	mux.HandleFunc("POST /api/instances/{instance}/send/media", s.handleSendMedia)
	mux.HandleFunc("POST /api/instances/{instance}/send/audio", s.handleSendAudio)
	mux.HandleFunc("POST /api/instances/{instance}/send/sticker", s.handleSendSticker)
	mux.HandleFunc("POST /api/instances/{instance}/send/location", s.handleSendLocation)
	mux.HandleFunc("POST /api/instances/{instance}/send/contact", s.handleSendContact)
	mux.HandleFunc("POST /api/instances/{instance}/send/reaction", s.handleSendReaction)
	mux.HandleFunc("POST /api/instances/{instance}/send/poll", s.handleSendPoll)
	mux.HandleFunc("POST /api/instances/{instance}/send/list", s.handleSendList)
	mux.HandleFunc("POST /api/instances/{instance}/send/buttons", s.handleSendButtons)
	mux.HandleFunc("POST /api/instances/{instance}/send/presence", s.handleSendPresence)
	mux.HandleFunc("POST /api/instances/{instance}/check-numbers", s.handleCheckNumbers)
	mux.HandleFunc("POST /api/instances/{instance}/mark-read", s.handleMarkRead)
	mux.HandleFunc("POST /api/instances/{instance}/profile", s.handleFetchProfile)
	mux.HandleFunc("POST /api/instances/{instance}/profile-picture", s.handleFetchProfilePicture)
	mux.HandleFunc("POST /api/instances/{instance}/refresh/groups", s.handleRefreshGroups)
	mux.HandleFunc("POST /api/instances/{instance}/refresh/connection", s.handleRefreshConnection)
	mux.HandleFunc("GET /api/instances/{instance}/state", s.handleState)
	mux.HandleFunc("DELETE /api/instances/{instance}/state", s.handleResetState)

	s.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           withRequestLogging(mux),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.ToDuration(),
	}

	return s, nil
}

// Notifier 暴露通知器，供进程内观察者订阅缓存变更。
func (s *Server) Notifier() *notify.Notifier {
	return s.notifier
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return fmt.Errorf("nil listener")
	}
	slog.Info("HTTP 服务启动",
		"listen_addr", s.cfg.Server.ListenAddr,
		"listener_addr", listener.Addr().String(),
		"instances_count", len(s.instances),
	)
	err := s.server.Serve(listener)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve: %w", err)
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP 服务关闭中")
	err := s.server.Shutdown(ctx)
	if s.poller != nil {
		s.poller.Close()
	}
	return err
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		slog.Info("请求完成",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", sw.status,
			"response_bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}
