package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jonwraymond/ncmat/catalog"
	"github.com/jonwraymond/ncmat/factory"
	"github.com/jonwraymond/ncmat/health"
	"github.com/jonwraymond/ncmat/observe"
	"github.com/jonwraymond/ncmat/resilience"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "serve materials, health and metrics over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: c.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			return c.app.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// handler returns the HTTP surface of the app.
func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/materials", a.handleMaterial)
	return mux
}

// serve runs the HTTP server on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log := a.obs.Logger()
	log.Info(ctx, "serving", observe.Field{Key: "addr", Value: ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

type componentResponse struct {
	Element      string  `json:"element"`
	Count        uint    `json:"count,omitempty"`
	MassFraction float64 `json:"mass_fraction"`
}

type materialResponse struct {
	Index        int                 `json:"index"`
	Name         string              `json:"name"`
	Base         string              `json:"base"`
	Density      float64             `json:"density_gcm3"`
	Temperature  float64             `json:"temperature_k"`
	Components   []componentResponse `json:"components"`
	Energy       float64             `json:"energy_ev"`
	CrossSection float64             `json:"xsect_barn"`
	Cached       bool                `json:"cached"`
}

// handleMaterial builds the material named by the cfg query parameter and
// reports its cross section at the optional energy parameter.
func (a *app) handleMaterial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := q.Get("cfg")
	if cfg == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing cfg parameter"))
		return
	}
	energy := 0.025
	if s := q.Get("energy"); s != "" {
		var err error
		if energy, err = strconv.ParseFloat(s, 64); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("energy must be a number"))
			return
		}
	}

	_, cached := a.factory.DerivedStore().Get(cfg)
	h, err := a.factory.DerivedMaterial(r.Context(), cfg)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	m := h.Value

	xs, err := m.Scatter.CrossSection(energy, r3.Vec{Z: 1})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := materialResponse{
		Index:        m.Index,
		Name:         m.Name,
		Base:         a.baseName(m),
		Density:      m.Density,
		Temperature:  m.Temperature,
		Components:   make([]componentResponse, len(m.Components)),
		Energy:       energy,
		CrossSection: xs,
		Cached:       cached,
	}
	for i, c := range m.Components {
		resp.Components[i] = componentResponse{
			Element:      c.Element.Symbol(),
			Count:        c.Count,
			MassFraction: c.MassFraction,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, factory.ErrBadInput):
		return http.StatusBadRequest
	case errors.Is(err, factory.ErrMissingInfo):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resilience.ErrBulkheadFull),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
