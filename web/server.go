// Package web exposes a BoundedPool over HTTP. A request to /asyncThread
// offloads a slow job to the pool and answers with the job's result.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	executor "github.com/vearne/boundedexecutor"
)

const (
	DefaultAddr           = ":8080"
	DefaultWorkDuration   = 4 * time.Second
	DefaultRequestTimeout = 30 * time.Second

	asyncReply = "Hello from Async Thread call"
	helloReply = "Hello Threads"
)

type Options struct {
	Addr string
	// WorkDuration is how long the background job behind /asyncThread takes.
	WorkDuration time.Duration
	// RequestTimeout bounds how long a request waits for its job.
	RequestTimeout time.Duration
	Logger         *zap.Logger
	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

func (o *Options) fillDefaults() {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.WorkDuration <= 0 {
		o.WorkDuration = DefaultWorkDuration
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Gatherer == nil {
		o.Gatherer = prometheus.DefaultGatherer
	}
}

type Server struct {
	pool    *executor.BoundedPool
	opts    Options
	log     *zap.Logger
	server  *fasthttp.Server
	metrics fasthttp.RequestHandler
}

func NewServer(pool *executor.BoundedPool, opts Options) *Server {
	opts.fillDefaults()
	s := &Server{
		pool: pool,
		opts: opts,
		log:  opts.Logger.Named("web"),
		metrics: fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}),
		),
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		Name:                  "boundedexecutor",
		NoDefaultServerHeader: true,
	}
	return s
}

func (s *Server) Addr() string {
	return s.opts.Addr
}

func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.opts.Addr))
	return s.server.ListenAndServe(s.opts.Addr)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("serving", zap.String("addr", ln.Addr().String()))
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections and waits for open requests. It does
// not shut the pool down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

func (s *Server) handleRequest(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if !ctx.IsGet() {
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusMethodNotAllowed), fasthttp.StatusMethodNotAllowed)
		return
	}

	switch path {
	case "/asyncThread":
		s.handleAsync(ctx)
	case "/hello":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(helloReply)
	case "/stats":
		s.handleStats(ctx)
	case "/metrics":
		s.metrics(ctx)
	default:
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
	}
}

func (s *Server) handleAsync(ctx *fasthttp.RequestCtx) {
	reqID := uuid.NewString()
	log := s.log.With(zap.String("request_id", reqID))
	log.Debug("offloading work", zap.Duration("work", s.opts.WorkDuration))

	f, err := s.pool.Submit(s.workload())
	if err != nil {
		log.Warn("submit failed", zap.Error(err))
		ctx.Error(err.Error(), statusFor(err))
		return
	}

	wait, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()
	r, err := f.GetContext(wait)
	if err != nil {
		f.Cancel()
		log.Warn("gave up waiting for task", zap.String("task_id", f.ID()), zap.Error(err))
		ctx.Error("timed out waiting for task", fasthttp.StatusGatewayTimeout)
		return
	}
	if r.Err != nil {
		log.Error("task failed", zap.String("task_id", f.ID()), zap.Error(r.Err))
		ctx.Error(r.Err.Error(), statusFor(r.Err))
		return
	}

	log.Debug("task done", zap.String("task_id", f.ID()), zap.Any("value", r.Value))
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(fmt.Sprintf("%s %v", asyncReply, r.Value))
}

// workload sleeps for WorkDuration unless cancelled, then yields true.
func (s *Server) workload() executor.Callable {
	d := s.opts.WorkDuration
	return executor.ValueFunc(func(ctx context.Context) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return true, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	body, err := json.Marshal(s.pool.Stats())
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, executor.ErrCapacityExceeded),
		errors.Is(err, executor.ErrPoolShutdown),
		errors.Is(err, executor.ErrTaskCanceled):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}
