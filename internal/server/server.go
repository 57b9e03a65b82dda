package server

import (
	"GDALedger/internal/event"
	"GDALedger/internal/ledger"
	"GDALedger/internal/observability"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 1 << 20

// Server hosts the gRPC service and its HTTP/JSON gateway.
type Server struct {
	svc      *Service
	grpcAddr string
	httpAddr string

	grpcServer *grpc.Server
	health     *health.Server
	checker    *observability.HealthChecker
	gatherer   prometheus.Gatherer
	log        zerolog.Logger
}

// Options configures a Server. A nil Gatherer serves the default registry.
type Options struct {
	GRPCAddr      string
	HTTPAddr      string
	HealthChecker *observability.HealthChecker
	Gatherer      prometheus.Gatherer
}

func New(svc *Service, opts Options, log zerolog.Logger) *Server {
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&ServiceDesc, svc)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	checker := opts.HealthChecker
	if checker == nil {
		checker = observability.NewHealthChecker()
		checker.SetReady(true)
	}
	return &Server{
		svc:        svc,
		grpcAddr:   opts.GRPCAddr,
		httpAddr:   opts.HTTPAddr,
		grpcServer: grpcServer,
		health:     healthServer,
		checker:    checker,
		gatherer:   gatherer,
		log:        log,
	}
}

// ServeGRPC listens on the gRPC address until ctx is cancelled.
func (s *Server) ServeGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// ServeHTTP listens on the HTTP address until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              s.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("HTTP shutdown")
		}
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the HTTP routes: the JSON API under /v1, health probes
// and metrics.
func (s *Server) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{}),
	)

	// RecordSale is absent: sales arrive only on the marketplace stream.
	for _, t := range []event.EventType{
		event.EventTypeRegisterHouse,
		event.EventTypeRegisterAuctioneer,
		event.EventTypeRegisterAsset,
		event.EventTypeDeposit,
		event.EventTypeCreateListing,
		event.EventTypePlaceOrder,
		event.EventTypeCloseListing,
	} {
		if err := mux.HandlePath(http.MethodPost, "/v1/commands/"+t.String(), s.handleCommand(mux, t)); err != nil {
			return nil, fmt.Errorf("register %s: %w", t, err)
		}
	}

	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodGet, "/v1/listings/{listing}", s.handleGetListing(mux)},
		{http.MethodGet, "/v1/listings/{listing}/quote", s.handleQuote(mux)},
		{http.MethodGet, "/v1/listings/{listing}/events", s.handleEvents(mux)},
		{http.MethodGet, "/v1/buyers/{buyer}/orders", s.handleOrders(mux)},
		{http.MethodGet, "/v1/balances/{holder}", s.handleBalance(mux)},
		{http.MethodGet, "/v1/admin/integrity", s.handleIntegrity(mux)},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.h); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.path, err)
		}
	}

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", s.checker.LivenessHandler)
	httpMux.HandleFunc("/readyz", s.checker.ReadinessHandler)
	httpMux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	httpMux.Handle("/", mux)
	return httpMux, nil
}

func writeError(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	_, outbound := runtime.MarshalerForRequest(mux, r)
	runtime.HTTPError(r.Context(), mux, outbound, w, r, ToStatus(err))
}

func writeJSON(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, v interface{}) {
	_, outbound := runtime.MarshalerForRequest(mux, r)
	body, err := outbound.Marshal(v)
	if err != nil {
		writeError(mux, w, r, err)
		return
	}
	w.Header().Set("Content-Type", outbound.ContentType(v))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func pathKey(params map[string]string, name string) (ledger.Pubkey, error) {
	k, err := ledger.PubkeyFromString(params[name])
	if err != nil {
		return k, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return k, nil
}

func queryInt(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return v, true, nil
}

// page reads the limit and before parameters shared by list routes.
func page(r *http.Request) (int, *int64, error) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		return 0, nil, err
	}
	before, ok, err := queryInt(r, "before")
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return int(limit), nil, nil
	}
	return int(limit), &before, nil
}

func (s *Server) handleCommand(mux *runtime.ServeMux, t event.EventType) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(mux, w, r, status.Error(codes.InvalidArgument, "read body"))
			return
		}
		evt, err := event.New(t)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(evt); err != nil {
			writeError(mux, w, r, status.Errorf(codes.InvalidArgument, "decode %s: %v", t, err))
			return
		}
		resp, err := s.svc.Execute(r.Context(), evt)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleGetListing(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		listing, err := pathKey(params, "listing")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		resp, err := s.svc.GetListing(r.Context(), &ListingRequest{Listing: listing})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleQuote(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		listing, err := pathKey(params, "listing")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		size, _, err := queryInt(r, "size")
		if err != nil || size < 0 {
			writeError(mux, w, r, status.Error(codes.InvalidArgument, "size must be a positive integer"))
			return
		}
		at, _, err := queryInt(r, "at")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		resp, err := s.svc.QuotePrice(r.Context(), &QuoteRequest{Listing: listing, Size: uint64(size), At: at})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleEvents(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		listing, err := pathKey(params, "listing")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		limit, before, err := page(r)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		resp, err := s.svc.ListEvents(r.Context(), &HistoryRequest{Listing: listing, Limit: limit, Before: before})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleOrders(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		buyer, err := pathKey(params, "buyer")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		limit, before, err := page(r)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		resp, err := s.svc.ListOrders(r.Context(), &OrdersRequest{Buyer: buyer, Limit: limit, Before: before})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleBalance(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		holder, err := pathKey(params, "holder")
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		req := &BalanceRequest{Holder: holder}
		if m := r.URL.Query().Get("mint"); m != "" {
			if req.Mint, err = ledger.PubkeyFromString(m); err != nil {
				writeError(mux, w, r, err)
				return
			}
		}
		resp, err := s.svc.GetBalance(r.Context(), req)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}

func (s *Server) handleIntegrity(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		resp, err := s.svc.VerifyIntegrity(r.Context(), &Empty{})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(mux, w, r, resp)
	}
}
