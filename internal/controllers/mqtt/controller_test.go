package mqttctrl

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/vdizone/internal/simulator"
	"github.com/Agrid-Dev/vdizone/internal/testutil"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	publishes []publishCall
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		// shouldn't happen in our controller, but keep it safe
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----
func newDefaultSvc() *testutil.FakeSimulationService {
	return testutil.NewFakeSimulationService()
}

func TestNewDefaults(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ZoneID: "office"})
	if err != nil {
		t.Fatal(err)
	}

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "vdizone/office" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "vdizone-office" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.PublishInterval != 1*time.Second {
		t.Fatalf("expected default PublishInterval, got %v", c.cfg.PublishInterval)
	}
}

func TestNewValidation(t *testing.T) {
	svc := newDefaultSvc()

	if _, err := New(svc, Config{}); err == nil {
		t.Fatal("expected error when ZoneID missing")
	}

	if _, err := New(svc, Config{ZoneID: "x", QoS: 2}); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ZoneID: "office", BaseTopic: "vdizone/office/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.topic("snapshot"); got != "vdizone/office/snapshot" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[string]([]byte(`{"value": "case10"}`))
		if err != nil {
			t.Fatal(err)
		}
		if v != "case10" {
			t.Fatalf("expected case10, got %v", v)
		}
	})

	t.Run("empty string is a value", func(t *testing.T) {
		v, err := decodeValueStrict[string]([]byte(`{"value": ""}`))
		if err != nil {
			t.Fatal(err)
		}
		if v != "" {
			t.Fatalf("expected empty, got %q", v)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":"case10","extra":1}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":`))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresWrongPrefix(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ZoneID: "office"})
	if err != nil {
		t.Fatal(err)
	}

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/set/run",
		payload: []byte(`{"value":"case10"}`),
	})

	if svc.StartCalled {
		t.Fatal("expected Start not called")
	}
}

func TestOnMessage_Run(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office"})
	fc := &fakeClient{}
	c.client = fc
	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/run",
		payload: []byte(`{"value":"case10-staged"}`),
	})

	if !svc.StartCalled || svc.StartArg != "case10-staged" {
		t.Fatalf("expected Start(case10-staged), got called=%v arg=%v", svc.StartCalled, svc.StartArg)
	}
}

func TestOnMessage_RunSelected(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office"})
	c.client = &fakeClient{}
	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/run",
		payload: []byte(`{"value":""}`),
	})

	if !svc.StartCalled || svc.StartArg != "" {
		t.Fatalf("expected Start(\"\"), got called=%v arg=%q", svc.StartCalled, svc.StartArg)
	}
	if svc.S.Last == nil || svc.S.Last.Case != "case10" {
		t.Fatalf("expected selected case to run, got %+v", svc.S.Last)
	}
}

func TestOnMessage_RunInvalid_DoesNotCallService(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office"})
	c.client = &fakeClient{}

	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/run",
		payload: []byte(`{"value":10}`),
	})

	if svc.StartCalled {
		t.Fatal("expected Start not called")
	}
}

func TestOnMessage_Selected(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office"})
	c.client = &fakeClient{}
	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/selected",
		payload: []byte(`{"value":"case10-staged"}`),
	})

	if !svc.SelectCalled || svc.S.Selected != "case10-staged" {
		t.Fatalf("expected Select(case10-staged), got called=%v selected=%v", svc.SelectCalled, svc.S.Selected)
	}
}

func TestOnMessage_UnknownField_Ignored(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office"})
	c.client = &fakeClient{}
	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/mode",
		payload: []byte(`{"value":"heat"}`),
	})

	if svc.StartCalled || svc.SelectCalled {
		t.Fatal("expected no service call")
	}
}

func TestPublishSnapshot_PublishesJSON(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ZoneID: "office", QoS: 1, RetainSnapshot: true})

	fc := &fakeClient{}
	c.client = fc

	c.publishSnapshot()

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}

	p := fc.publishes[0]
	if p.topic != "vdizone/office/snapshot" {
		t.Fatalf("expected snapshot topic, got %q", p.topic)
	}
	if p.qos != 1 || p.retain != true {
		t.Fatalf("expected qos=1 retain=true, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got map[string]any
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got["selected"] != "case10" {
		t.Fatalf("expected selected=case10, got %v", got["selected"])
	}
	if got["zone_id"] != "office" {
		t.Fatalf("expected zone_id=office, got %v", got["zone_id"])
	}
	if _, ok := got["last"]; ok {
		t.Fatalf("expected no last run yet, got %v", got["last"])
	}
}

func TestPublishSnapshot_IncludesLastRun(t *testing.T) {
	svc := newDefaultSvc()
	svc.S.Runs = 2
	svc.S.Last = &simulator.Summary{Case: "case10", FinalAir: 22.5}
	c, _ := New(svc, Config{ZoneID: "office"})
	fc := &fakeClient{}
	c.client = fc

	c.publishSnapshot()

	var got snapshotDTO
	if err := json.Unmarshal(fc.publishes[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.Runs != 2 || got.Last == nil || got.Last.FinalAir != 22.5 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

// Controller swallows service errors; they are only logged.
func TestOnMessage_ServiceError_IsIgnored(t *testing.T) {
	svc := newDefaultSvc()
	svc.StartErr = errors.New("boom")
	c, _ := New(svc, Config{ZoneID: "office"})
	fc := &fakeClient{}
	c.client = fc
	c.onMessage(nil, fakeMessage{
		topic:   "vdizone/office/set/run",
		payload: []byte(`{"value":"case10"}`),
	})

	if !svc.StartCalled {
		t.Fatal("expected Start called")
	}
	if svc.S.Runs != 0 {
		t.Fatalf("expected no run recorded, got %d", svc.S.Runs)
	}
}
