package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	sm "corr.service/models"
)

const (
	DefaultAddr = ":8080"

	healthy = "healthy"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type PricesResponse struct {
	Prices    map[string]float64 `json:"prices"`
	Timestamp time.Time          `json:"timestamp"`
	Warnings  []Warning          `json:"warnings"`
}

func GetHttpServer(sc *ServiceContext) *http.Server {
	server := &http.Server{
		Addr:           DefaultAddr,
		Handler:        sc.Router(),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if sc.Config != nil {
		server.Addr = sc.Config.Server.Addr
		server.ReadTimeout = sc.Config.Server.ReadTimeout
		server.WriteTimeout = sc.Config.Server.WriteTimeout
		server.IdleTimeout = sc.Config.Server.IdleTimeout
	}
	if sc.Context != nil {
		server.BaseContext = func(net.Listener) context.Context { return sc.Context }
	}

	return server
}

func (sc *ServiceContext) Router() http.Handler {
	origins := []string{"*"}
	if sc.Config != nil && len(sc.Config.Server.AllowedOrigins) > 0 {
		origins = sc.Config.Server.AllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(sc.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", sc.health)
		r.Get("/assets", sc.assets)
		r.Get("/periods", sc.periods)
		r.Post("/correlation", sc.correlation)
		r.Post("/prices", sc.prices)
		r.Post("/export", sc.export)
	})

	if sc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", sc.Metrics.Handler())
	}

	return r
}

func (sc *ServiceContext) health(w http.ResponseWriter, r *http.Request) {
	respondOk(w, r, &HealthResponse{Status: healthy, Timestamp: sc.Now().UTC()})
}

func (sc *ServiceContext) assets(w http.ResponseWriter, r *http.Request) {
	res := sc.Catalog.ByClass()
	respondOk(w, r, &res)
}

func (sc *ServiceContext) periods(w http.ResponseWriter, r *http.Request) {
	res := sm.PeriodLabels()
	respondOk(w, r, &res)
}

func (sc *ServiceContext) correlation(w http.ResponseWriter, r *http.Request) {
	var req sm.CorrelationRequest
	if !sc.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := sc.RunAnalysis(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOk(w, r, res)
}

func (sc *ServiceContext) prices(w http.ResponseWriter, r *http.Request) {
	var req sm.PricesRequest
	if !sc.decodeAndValidate(w, r, &req) {
		return
	}

	prices, warnings, err := sc.LatestPrices(r.Context(), req.Assets.Symbols())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if warnings == nil {
		warnings = []Warning{}
	}
	respondOk(w, r, &PricesResponse{Prices: prices, Timestamp: sc.Now().UTC(), Warnings: warnings})
}

func (sc *ServiceContext) export(w http.ResponseWriter, r *http.Request) {
	var req sm.ExportRequest
	if !sc.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := ExportMatrix(req, sc.Now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOk(w, r, &res)
}

func (sc *ServiceContext) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		respondStatus(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := sm.ValidateStruct(sc.Validator, v); err != nil {
		respondStatus(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func respondOk[T any](w http.ResponseWriter, r *http.Request, data *T) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, sm.GetServiceResponseOk(data))
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnknownPeriod), errors.Is(err, ErrNoAssets):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondStatus(w, r, status, err.Error())
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, sm.GetServiceResponseError(message))
}

// requestLogger logs every request and records its duration under the
// matched route pattern.
func requestLogger(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if metrics != nil {
				metrics.RequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
			}
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", time.Since(start)).
				Msg("handled request")
		})
	}
}
