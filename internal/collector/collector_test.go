package collector

import (
	"testing"

	"github.com/shirou/gopsutil/v3/host"
)

func TestPickTemperature(t *testing.T) {
	tests := []struct {
		name  string
		temps []host.TemperatureStat
		want  float64
		ok    bool
	}{
		{"none", nil, 0, false},
		{"all zero", []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 0}}, 0, false},
		{
			"preferred wins",
			[]host.TemperatureStat{
				{SensorKey: "nvme_composite", Temperature: 38},
				{SensorKey: "coretemp_package_id_0", Temperature: 52},
			},
			52, true,
		},
		{
			"raspberry pi",
			[]host.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 44.8}},
			44.8, true,
		},
		{
			"fallback to first non-zero",
			[]host.TemperatureStat{
				{SensorKey: "acpitz", Temperature: 0},
				{SensorKey: "nvme_composite", Temperature: 38},
			},
			38, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickTemperature(tt.temps)
			if ok != tt.ok || got != tt.want {
				t.Errorf("pickTemperature = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
