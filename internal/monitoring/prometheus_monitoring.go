package prometheus_monitoring

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/config"
)

// https://prometheus.io/docs/guides/go-application/

const (
	namespace       = "payment_links"
	status_interval = 30 * time.Second
)

var (
	microserviceStatusMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "microservice_status",
		Help:      "Health status indicator for payment-links microservice",
	})
	createdLinkMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "created_link",
		Help:      "The total number of times a payment link was successfully created",
	})
	createLinkFailedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "create_link_failed",
		Help:      "The total number of times creating a payment link failed",
	})
	webhookVerifiedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_verified",
		Help:      "The total number of webhook deliveries that passed signature verification",
	})
	webhookRejectedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_rejected",
		Help:      "The total number of webhook deliveries rejected before reaching business logic",
	})
	paymentConfirmedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmed",
		Help:      "The total number of verified payment_link.paid events",
	})
)

func getStatus() (float64, error) {
	config, err := config.GetConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to get config from env")
	}

	req, err := http.NewRequest("GET", config.Monitoring.StatusURL, nil)
	if err != nil {
		return 0, err
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("status health check failed: %+v", resp)
	}

	_, err = ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	return 1, nil
}

func RecordMetrics() {
	go func() {
		for {
			time.Sleep(status_interval)

			status, err := getStatus()
			if err != nil {
				fmt.Printf("Checked status, got error: %+v\n", err)
			}
			microserviceStatusMetric.Set(status)
		}
	}()
}

func TickCreatedLink() {
	createdLinkMetric.Inc()
}

func TickCreateLinkFailed() {
	createLinkFailedMetric.Inc()
}

func TickWebhookVerified() {
	webhookVerifiedMetric.Inc()
}

func TickWebhookRejected() {
	webhookRejectedMetric.Inc()
}

func TickPaymentConfirmed() {
	paymentConfirmedMetric.Inc()
}
