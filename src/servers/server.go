// Package servers exposes the HTTP API for inspecting and editing the
// tracked entity set.
package servers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/log"
	"github.com/streamalert-go/streamalert-go/src/pkg/sentry"
	"github.com/streamalert-go/streamalert-go/src/store"
)

type Server struct {
	server *http.Server
	store  store.Store
}

type commonResp struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJsonWithStatusCode(w, http.StatusOK, data)
}

func writeJsonWithStatusCode(w http.ResponseWriter, code int, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func NewServer(st store.Store) *Server {
	cfg := configs.GetCurrentConfig()
	httpServer := &http.Server{
		Addr:              cfg.RPC.Bind,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s := &Server{server: httpServer, store: st}

	router := mux.NewRouter()
	router.Use(logMiddleware)
	router.Handle("/metrics", promhttp.Handler())

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/info", s.getInfo).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}", s.getGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/settings", s.putGroupSettings).Methods(http.MethodPut)
	api.HandleFunc("/groups/{group}/entities", s.listEntities).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/entities", s.addEntity).Methods(http.MethodPost)
	api.HandleFunc("/groups/{group}/entities/{id}", s.removeEntity).Methods(http.MethodDelete)

	httpServer.Handler = router
	return s
}

func (s *Server) Start() error {
	sentry.Go(func() {
		switch err := s.server.ListenAndServe(); err {
		case nil, http.ErrServerClosed:
		default:
			log.GetLogger().WithError(err).Error("http server exited")
		}
	})
	log.GetLogger().WithField("addr", s.server.Addr).Info("http server started")
	return nil
}

func (s *Server) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.GetLogger().WithError(err).Error("failed to shut down http server")
	}
	log.GetLogger().WithField("addr", s.server.Addr).Info("http server stopped")
}
