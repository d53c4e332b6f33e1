package ports

import (
	"context"

	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

// SimulationService is the control-plane port used by controllers (HTTP/MQTT/etc).
type SimulationService interface {
	Get() simulator.Snapshot
	Cases() []string
	Select(name string) error
	RunCase(ctx context.Context, name string) (simulator.Summary, error)
	Start(ctx context.Context, name string) error
}
