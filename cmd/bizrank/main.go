// bizrank 对一次排序请求执行打分、业务逻辑 Pipeline 与分页。
//
// 单次模式：从文件或标准输入读取请求 JSON，输出响应 JSON。
//
//	bizrank -config bizrank.yaml -request request.json
//
// 服务模式：-addr 非空时监听 HTTP。
//   - POST /ranking  排序请求
//   - GET  /metrics  Prometheus 指标
//   - GET  /health   健康检查
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rushteam/bizrank/config"
	"github.com/rushteam/bizrank/config/builders"
	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/eventlog"
	"github.com/rushteam/bizrank/metrics"
	"github.com/rushteam/bizrank/model"
	"github.com/rushteam/bizrank/pipeline"
	"github.com/rushteam/bizrank/rank"
	"github.com/rushteam/bizrank/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxRequestBytes   = 8 << 20
)

var (
	cfgPath     = flag.String("config", "", "Path to service config YAML (or BIZRANK_CONFIG)")
	requestPath = flag.String("request", "-", "Ranking request JSON file, - for stdin")
	addr        = flag.String("addr", "", "HTTP listen address; serve /ranking and /metrics instead of ranking one request")
	metricsAddr = flag.String("metrics-addr", "", "Serve /metrics on this address in single request mode")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadService(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer kv.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(metrics.WithRegistry(reg))

	ranker, err := buildRanker(cfg, kv, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build ranker")
	}

	if *addr != "" {
		serve(ctx, *addr, ranker, reg)
		return
	}
	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: readHeaderTimeout}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	if err := rankOnce(ctx, ranker, *requestPath, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Ranking failed")
	}
}

func setupLogging(cfg *config.Service) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty || level <= zerolog.DebugLevel {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Invalid log level; falling back to info")
	}
}

func openStore(ctx context.Context, cfg *config.Service) (core.KeyValueStore, error) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("No redis configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	rs := store.NewRedisStore(store.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
	})
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Connected to redis")
	return rs, nil
}

func buildRanker(cfg *config.Service, kv core.KeyValueStore, recorder *metrics.Recorder) (*rank.Ranker, error) {
	logger := log.Logger

	pcfg, err := pipeline.LoadFromYAML(cfg.PipelineFile)
	if err != nil {
		return nil, err
	}
	reg := builders.NewDefaultRegistry(builders.Deps{Store: kv, Logger: &logger})
	p, err := reg.BuildPipeline(pcfg)
	if err != nil {
		return nil, err
	}

	var sinks eventlog.MultiSink
	if cfg.EventTTLSeconds > 0 {
		sinks = append(sinks, &eventlog.StoreSink{Store: kv, TTL: cfg.EventTTLSeconds})
	}
	if cfg.LogEvents {
		sinks = append(sinks, &eventlog.LogSink{Logger: logger, Level: zerolog.InfoLevel})
	}
	if len(sinks) > 0 {
		p.Sink = sinks
	}
	p.Observer = recorder
	p.Logger = &logger

	var scorer core.Scorer
	switch {
	case cfg.ModelEndpoint != "":
		scorer = model.NewRPCModel("rpc", cfg.ModelEndpoint, time.Duration(cfg.ModelTimeoutMS)*time.Millisecond)
	case cfg.LRModelFile != "":
		lr, err := model.LoadLRModel(cfg.LRModelFile)
		if err != nil {
			return nil, err
		}
		scorer = lr
	}

	stageNames := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		stageNames[i] = s.Name()
	}
	log.Info().Str("pipeline", p.Name).Strs("stages", stageNames).Msg("Loaded business logic pipeline")

	return &rank.Ranker{
		Scorer:    scorer,
		Pipeline:  p,
		APISource: cfg.APISource,
		Observer:  recorder,
		Logger:    &logger,
	}, nil
}

func rankOnce(ctx context.Context, ranker *rank.Ranker, path string, w io.Writer) error {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	var req rank.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return err
	}
	resp, err := ranker.Rank(ctx, &req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func serve(ctx context.Context, listen string, ranker *rank.Ranker, reg *prometheus.Registry) {
	mux := metricsMux(reg)
	mux.HandleFunc("/ranking", rankingHandler(ranker))

	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		log.Info().Str("addr", listen).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func rankingHandler(ranker *rank.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req rank.Request
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := ranker.Rank(r.Context(), &req)
		if err != nil {
			status := http.StatusInternalServerError
			if core.IsInvalidInput(err) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if de := core.GetDomainError(err); de != nil {
		body["code"] = de.Code
		body["module"] = de.Module
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
