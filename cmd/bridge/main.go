package main

import (
	"net/http"
	"time"

	"live-gallery/internal/fanout"
	"live-gallery/internal/handlers"
	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"
	"live-gallery/internal/middleware"
	"live-gallery/internal/startup"
	"live-gallery/internal/supervisor"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadBridgeConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
	}

	forwarder := fanout.NewHTTPForwarder(config.PublishURL, config.InternalSecret, config.PublishTimeout)
	hub := fanout.NewHub(forwarder)

	router := setupRouter(hub)
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.ServiceName = "bridge"
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	startup.LogHTTPRoutes(router, loggingConfig)
	var handler http.Handler = middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	tree := supervisor.NewTree("bridge", logging.Slog(), supervisor.DefaultTreeConfig())
	tree.AddTransportService(hub)
	tree.AddAPIService(supervisor.NewHTTPServerService("bridge-http", &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, 10*time.Second))
	if config.MetricsEnabled {
		tree.AddAPIService(supervisor.NewHTTPServerService("bridge-metrics", &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           handlers.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}, 5*time.Second))
	}

	startup.LogServerStarted(startup.ServerConfig{
		Name:            "bridge",
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
		Endpoints: []string{
			"Socket:        ws://0.0.0.0:" + config.Port + "/ws",
			"Publishes to:  " + config.PublishURL,
		},
	})

	if err := tree.RunUntilSignal(); err != nil {
		startup.LogFatal("Bridge error: %v", err)
	}
}

func setupRouter(hub *fanout.Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.BridgeHealth(hub)).Methods("GET")
	r.HandleFunc("/livez", handlers.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", handlers.GetVersion).Methods("GET")
	r.Handle("/ws", hub).Methods("GET")
	return r
}
