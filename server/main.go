package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/api"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/config"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/links"
	prometheus_monitoring "bitbucket.org/ConcurrentDragon/payment-links/internal/monitoring"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/orders"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

func main() {
	fmt.Printf("Payment Links Server - Version %s\n", version)

	// local development convenience, missing .env is fine
	err := godotenv.Load()
	if err == nil {
		fmt.Printf("Loaded environment from .env\n")
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Printf("Failed to get config path: %v\n", err)
		os.Exit(configPathErr)
	}

	err = config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(configLoadErr)
	}
	config, err := config.GetConfig()
	if err != nil {
		fmt.Printf("Failed to get config from env: %v\n", err)
		os.Exit(configGetErr)
	}

	// the relay is useless and dangerous without credentials, refuse to start
	if !config.Mocked && (config.Razorpay.KeyID == "" || config.Razorpay.KeySecret == "") {
		fmt.Printf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET must be set\n")
		os.Exit(credentialsErr)
	}
	if config.Razorpay.WebhookSecret == "" {
		fmt.Printf("Warning: RAZORPAY_WEBHOOK_SECRET is not set, the webhook endpoint will reject all deliveries\n")
	}

	var apiService api.ApiServicer
	if config.Mocked {
		apiService = api.NewMockedApiService()
	} else {
		razorpayService, err := razorpay.New(
			config.Razorpay.KeyID,
			config.Razorpay.KeySecret,
			config.Razorpay.WebhookSecret,
			config.Razorpay.BaseURL,
		)
		if err != nil {
			fmt.Printf("Failed to create Razorpay service: %+v\n", err)
			os.Exit(razorpayErr)
		}

		linksService := links.New(razorpayService)
		ordersService := orders.New()

		apiService = api.NewApiService(
			linksService,
			razorpayService,
			ordersService,
		)
	}

	router := mux.NewRouter()
	router.HandleFunc("/", apiService.GetStatus).Methods("GET")
	router.HandleFunc("/api/create-link", apiService.CreateLink).Methods("POST")
	router.HandleFunc("/api/webhook", apiService.Webhook).Methods("POST")

	// add Prometheus metrics to router
	prometheus_monitoring.RecordMetrics()
	router.Handle("/metrics", promhttp.Handler())

	handler := api.RecoverMiddleware(router)
	handler = api.RequestIDMiddleware(handler)
	handler = api.CORSMiddleware(config.CORS.AllowedOrigin, handler)

	hostString := fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)
	fmt.Printf("Listening on %s\n", hostString)
	server := http.Server{
		Addr:    hostString,
		Handler: handler,
	}
	err = server.ListenAndServe()
	if err != nil {
		fmt.Printf("Error starting server: %v\n", err)
		os.Exit(serverErr)
	}

	os.Exit(successCode)
}
