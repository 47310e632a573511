package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestInitProvider_ExportsToRegisterer(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		Platform:       "mock",
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordNotification(context.Background(), "routeChange", "ok")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "audiosession_notifications") {
			found = true
		}
	}
	if !found {
		t.Errorf("notification counter not exported; got %d families", len(families))
	}
}

func TestProviderConfig_ResourceCarriesPlatform(t *testing.T) {
	res, err := ProviderConfig{ServiceName: "svc", Platform: "simulated"}.resource()
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	v, ok := res.Set().Value(AttrPlatform)
	if !ok || v.AsString() != "simulated" {
		t.Errorf("platform attribute = %v (present %v), want simulated", v, ok)
	}
}
