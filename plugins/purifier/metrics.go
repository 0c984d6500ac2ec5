package purifier

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector reads a fresh snapshot on every scrape.
type MetricsCollector struct {
	client *Client

	success     prometheus.Gauge
	power       prometheus.Gauge
	mode        *prometheus.GaugeVec
	airVolume   *prometheus.GaugeVec
	humiditySet *prometheus.GaugeVec
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	pm25        prometheus.Gauge
	dust        prometheus.Gauge
	odor        prometheus.Gauge
}

func NewMetricsCollector(client *Client) *MetricsCollector {
	return &MetricsCollector{
		client: client,
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_scrape_success",
			Help: "Last scrape success (1=ok, 0=error)",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_power_on",
			Help: "Unit power (1=on, 0=off)",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_purifier_mode",
			Help: "Active operating mode (1=active)",
		}, []string{"mode"}),
		airVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_purifier_air_volume",
			Help: "Active fan speed (1=active)",
		}, []string{"air_volume"}),
		humiditySet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_purifier_humidity_target",
			Help: "Active humidification target (1=active)",
		}, []string{"humidity"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_temperature_celsius",
			Help: "Reported room temperature (celsius)",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_humidity_percent",
			Help: "Reported room humidity (%)",
		}),
		pm25: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_pm25_level",
			Help: "Reported PM2.5 level",
		}),
		dust: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_dust_level",
			Help: "Reported dust level",
		}),
		odor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_purifier_odor_level",
			Help: "Reported odor level",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.success.Describe(ch)
	c.power.Describe(ch)
	c.mode.Describe(ch)
	c.airVolume.Describe(ch)
	c.humiditySet.Describe(ch)
	c.temperature.Describe(ch)
	c.humidity.Describe(ch)
	c.pm25.Describe(ch)
	c.dust.Describe(ch)
	c.odor.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := c.client.QuerySnapshot(ctx)
	if err != nil {
		c.success.Set(0)
		c.success.Collect(ch)
		return
	}

	c.mode.Reset()
	c.airVolume.Reset()
	c.humiditySet.Reset()

	c.power.Set(float64(info.Control.Power))
	c.mode.WithLabelValues(info.Control.Mode.String()).Set(1)
	c.airVolume.WithLabelValues(info.Control.AirVolume.String()).Set(1)
	c.humiditySet.WithLabelValues(info.Control.Humidity.String()).Set(1)

	c.power.Collect(ch)
	c.mode.Collect(ch)
	c.airVolume.Collect(ch)
	c.humiditySet.Collect(ch)

	collectReading(ch, c.temperature, info.Sensors.TemperatureCelsius)
	collectReading(ch, c.humidity, info.Sensors.HumidityPercent)
	collectReading(ch, c.pm25, info.Sensors.PM25)
	collectReading(ch, c.dust, info.Sensors.Dust)
	collectReading(ch, c.odor, info.Sensors.Odor)

	c.success.Set(1)
	c.success.Collect(ch)
}

// collectReading skips readings the unit did not report.
func collectReading(ch chan<- prometheus.Metric, gauge prometheus.Gauge, value *float64) {
	if value == nil {
		return
	}
	gauge.Set(*value)
	gauge.Collect(ch)
}
