package healthmanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

const DefaultPort = 7888

// Feed is a crash record source that reports whether it is running.
type Feed interface {
	IsRunning() bool
}

type HealthManager struct {
	feeds []Feed
	port  int
	srv   *http.Server
}

func NewHealthManager(port int) *HealthManager {
	if port == 0 {
		port = DefaultPort
	}
	return &HealthManager{
		port: port,
	}
}

// AddFeed registers a feed that must be running for the agent to be ready.
func (h *HealthManager) AddFeed(feed Feed) {
	h.feeds = append(h.feeds, feed)
}

func (h *HealthManager) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", h.livenessProbe)
	mux.HandleFunc("/readyz", h.readinessProbe)
	return mux
}

func (h *HealthManager) Start(ctx context.Context) {
	h.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.port),
		Handler:      h.Handler(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go func() {
		logger.L().Info("starting health manager", helpers.Int("port", h.port))
		if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Ctx(ctx).Error("health manager stopped", helpers.Error(err), helpers.Int("port", h.port))
		}
	}()
}

func (h *HealthManager) Stop(ctx context.Context) {
	if h.srv != nil {
		_ = h.srv.Shutdown(ctx)
	}
}

func (h *HealthManager) livenessProbe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *HealthManager) readinessProbe(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
}

func (h *HealthManager) ready() bool {
	if len(h.feeds) == 0 {
		return false
	}
	for _, feed := range h.feeds {
		if !feed.IsRunning() {
			return false
		}
	}
	return true
}
