package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsCounter counts upload requests that reached the history step, by outcome
	UploadsCounter *prometheus.CounterVec

	// UploadBytesCounter measures compressed bytes written to the object store
	UploadBytesCounter *prometheus.CounterVec

	// MQTTErrors counts connect/publish failures of the notification publisher
	MQTTErrors *prometheus.CounterVec

	// MQTTConnected is 1 while the publisher holds an open broker connection
	MQTTConnected prometheus.Gauge
)

func init() {
	// deviceType: hardware family, outcome: success/metadata_failed/notify_failed
	UploadsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firmware_uploads_total",
		Help: "A counter metric for firmware uploads by device type and outcome",
	},
		[]string{"device_type", "outcome"},
	)

	UploadBytesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firmware_upload_bytes_total",
		Help: "A counter metric for compressed firmware bytes written to the object store",
	},
		[]string{"device_type"},
	)

	MQTTErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firmware_mqtt_errors_total",
		Help: "A counter metric for MQTT connect and publish failures",
	},
		[]string{"op"},
	)

	MQTTConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "firmware_mqtt_connected",
		Help: "Whether the notification publisher is connected to the broker",
	})
}

// MaxDeviceTypeLabels bounds the device_type label set; later types share OtherDeviceType
const MaxDeviceTypeLabels = 32

// OtherDeviceType is the label for device types past the cap
const OtherDeviceType = "other"

var deviceTypes = struct {
	sync.Mutex
	seen map[string]struct{}
}{seen: make(map[string]struct{})}

// deviceTypeLabel returns deviceType while fewer than MaxDeviceTypeLabels distinct
// values have been seen, and OtherDeviceType afterwards
func deviceTypeLabel(deviceType string) string {
	deviceTypes.Lock()
	defer deviceTypes.Unlock()

	if _, ok := deviceTypes.seen[deviceType]; ok {
		return deviceType
	}
	if len(deviceTypes.seen) >= MaxDeviceTypeLabels {
		return OtherDeviceType
	}
	deviceTypes.seen[deviceType] = struct{}{}
	return deviceType
}

// Upload records one finished upload
func Upload(deviceType, outcome string, compressedBytes int) {
	label := deviceTypeLabel(deviceType)

	UploadsCounter.WithLabelValues(label, outcome).Inc()
	if compressedBytes > 0 {
		UploadBytesCounter.WithLabelValues(label).Add(float64(compressedBytes))
	}
}

// MQTTError records a failed broker operation
func MQTTError(op string) {
	MQTTErrors.WithLabelValues(op).Inc()
}

// SetMQTTConnected updates the connection gauge
func SetMQTTConnected(connected bool) {
	if connected {
		MQTTConnected.Set(1)
		return
	}
	MQTTConnected.Set(0)
}

// Handler exposes prometheus metrics on the gin router
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
