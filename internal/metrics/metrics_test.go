package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUpload(t *testing.T) {
	before := testutil.ToFloat64(UploadsCounter.WithLabelValues("stm32", "notify_failed"))
	bytesBefore := testutil.ToFloat64(UploadBytesCounter.WithLabelValues("stm32"))

	Upload("stm32", "notify_failed", 512)

	assert.Equal(t, before+1, testutil.ToFloat64(UploadsCounter.WithLabelValues("stm32", "notify_failed")))
	assert.Equal(t, bytesBefore+512, testutil.ToFloat64(UploadBytesCounter.WithLabelValues("stm32")))
}

func TestMQTTGauge(t *testing.T) {
	SetMQTTConnected(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(MQTTConnected))

	SetMQTTConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(MQTTConnected))

	before := testutil.ToFloat64(MQTTErrors.WithLabelValues("publish"))
	MQTTError("publish")
	assert.Equal(t, before+1, testutil.ToFloat64(MQTTErrors.WithLabelValues("publish")))
}

func TestUpload_DeviceTypeLabelsAreBounded(t *testing.T) {
	for i := 0; i < MaxDeviceTypeLabels+10; i++ {
		Upload(fmt.Sprintf("board-%d", i), "success", 1)
	}

	assert.LessOrEqual(t, testutil.CollectAndCount(UploadsCounter), MaxDeviceTypeLabels+1)
	assert.Greater(t, testutil.ToFloat64(UploadsCounter.WithLabelValues(OtherDeviceType, "success")), float64(0))

	// 已记录的类型保持原标签
	label := deviceTypeLabel("board-0")
	assert.Equal(t, "board-0", label)
	before := testutil.ToFloat64(UploadsCounter.WithLabelValues(label, "success"))
	Upload("board-0", "success", 0)
	assert.Equal(t, before+1, testutil.ToFloat64(UploadsCounter.WithLabelValues(label, "success")))
}
