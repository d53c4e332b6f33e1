package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/vdizone/internal/ports"
	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

type Config struct {
	// Identity
	ZoneID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string

	Logger *slog.Logger
}

type Controller struct {
	svc ports.SimulationService
	cfg Config
	log *slog.Logger

	// ctx scopes runs started from commands; replaced by Run's context.
	ctx    context.Context
	client mqtt.Client
}

func New(svc ports.SimulationService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.ZoneID == "" {
		return nil, errors.New("mqtt: ZoneID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "vdizone/" + cfg.ZoneID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "vdizone-" + cfg.ZoneID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log.With("component", "mqtt", "base_topic", cfg.BaseTopic),
		ctx: context.Background(),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		// Subscribe to all set commands under BaseTopic.
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("subscribe failed", "topic", topic, "err", err)
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	var last simulator.Snapshot
	first := true

	// publish immediately once
	c.publishSnapshot()
	c.log.Info("mqtt connected", "broker", c.cfg.BrokerURL)

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if first || !reflect.DeepEqual(cur, last) {
				c.publishSnapshot()
				last = cur
				first = false
			}
		}
	}
}

func (c *Controller) publishSnapshot() {
	s := c.svc.Get()
	dto := snapshotDTO{
		ZoneID:   c.cfg.ZoneID,
		Selected: s.Selected,
		Running:  s.Running,
		Runs:     s.Runs,
		Last:     s.Last,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		c.log.Error("marshal snapshot", "err", err)
		return
	}
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

type snapshotDTO struct {
	ZoneID   string             `json:"zone_id"`
	Selected string             `json:"selected"`
	Running  int                `json:"running"`
	Runs     int                `json:"runs"`
	Last     *simulator.Summary `json:"last,omitempty"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.cfg.BaseTopic + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	payload := msg.Payload()

	// Dispatch by field
	switch field {
	case "run":
		// {"value":""} runs the selected case
		name, err := decodeValueStrict[string](payload)
		if err != nil {
			c.log.Debug("bad run command", "err", err)
			return
		}
		if err := c.svc.Start(c.ctx, name); err != nil {
			c.log.Warn("run rejected", "case", name, "err", err)
		}

	case "selected":
		name, err := decodeValueStrict[string](payload)
		if err != nil {
			c.log.Debug("bad select command", "err", err)
			return
		}
		if err := c.svc.Select(name); err != nil {
			c.log.Warn("select rejected", "case", name, "err", err)
		}
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
