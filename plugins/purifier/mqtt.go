package purifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/internal/config"
)

const (
	mqttTimeout    = 5 * time.Second
	commandTimeout = 20 * time.Second
)

// commandResult is published to <prefix>/result after every command.
type commandResult struct {
	Field  string         `json:"field"`
	Value  string         `json:"value"`
	Result *ControlResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Bridge mirrors the unit onto an MQTT broker. It publishes the snapshot to
// <prefix>/state on a cron schedule and after every command, and executes
// commands published to <prefix>/set/{power,mode,airvol,humd}.
type Bridge struct {
	client   *Client
	conn     mqtt.Client
	prefix   string
	schedule string
	logger   *zap.Logger

	// mu serializes command handling so bridge commands never interleave
	// their read-modify-write cycles.
	mu sync.Mutex
}

// NewBridge builds a bridge connected to cfg.Broker. The connection is made
// in Run.
func NewBridge(client *Client, cfg config.MQTTConfig, logger *zap.Logger) *Bridge {
	b := newBridge(client, nil, cfg.TopicPrefix, cfg.PublishSchedule, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gohome-purifier"
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(b.topic("availability"), "offline", 0, true)
	opts.OnConnect = func(c mqtt.Client) {
		b.onConnect(c)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.Warn("mqtt connection lost", zap.Error(err))
	}
	b.conn = mqtt.NewClient(opts)
	return b
}

func newBridge(client *Client, conn mqtt.Client, prefix, schedule string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	if schedule == "" {
		schedule = config.DefaultPublishSchedule
	}
	return &Bridge{
		client:   client,
		conn:     conn,
		prefix:   strings.Trim(prefix, "/"),
		schedule: schedule,
		logger:   logger,
	}
}

// Run connects, publishes on schedule and blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	// With connect retry enabled the token only completes once connected, so
	// a slow broker is not fatal.
	token := b.conn.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		b.logger.Warn("mqtt broker unreachable, retrying in background", zap.String("prefix", b.prefix))
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer b.conn.Disconnect(250)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(b.schedule, func() {
		if err := b.PublishState(ctx); err != nil {
			b.logger.Warn("scheduled state publish failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("mqtt publish schedule %q: %w", b.schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if err := b.PublishState(ctx); err != nil {
		b.logger.Warn("initial state publish failed", zap.Error(err))
	}

	<-ctx.Done()
	_ = b.publish(b.topic("availability"), []byte("offline"), true)
	return nil
}

func (b *Bridge) onConnect(c mqtt.Client) {
	b.logger.Info("mqtt connected", zap.String("prefix", b.prefix))
	_ = c.Publish(b.topic("availability"), 0, true, "online").WaitTimeout(mqttTimeout)
	token := c.Subscribe(b.topic("set/+"), 1, b.handleMessage)
	if token.WaitTimeout(mqttTimeout) && token.Error() != nil {
		b.logger.Error("mqtt subscribe failed", zap.Error(token.Error()))
	}
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	b.HandleCommand(ctx, msg.Topic(), msg.Payload())
}

// HandleCommand executes a command addressed to <prefix>/set/<field> and
// publishes the outcome followed by a fresh snapshot.
func (b *Bridge) HandleCommand(ctx context.Context, topic string, payload []byte) {
	field, ok := strings.CutPrefix(topic, b.topic("set/"))
	if !ok || field == "" {
		b.logger.Debug("ignoring mqtt message", zap.String("topic", topic))
		return
	}
	value := strings.TrimSpace(string(payload))

	b.mu.Lock()
	result, err := b.client.Apply(ctx, field, value)
	b.mu.Unlock()

	out := commandResult{Field: field, Value: value}
	if err != nil {
		b.logger.Warn("mqtt command failed",
			zap.String("field", field),
			zap.String("value", value),
			zap.Error(err),
		)
		out.Error = err.Error()
	} else {
		out.Result = &result
	}
	if data, err := json.Marshal(out); err == nil {
		if err := b.publish(b.topic("result"), data, false); err != nil {
			b.logger.Warn("publish command result", zap.Error(err))
		}
	}

	if err == nil {
		if err := b.PublishState(ctx); err != nil {
			b.logger.Warn("state publish after command failed", zap.Error(err))
		}
	}
}

// PublishState reads a fresh snapshot and publishes it retained.
func (b *Bridge) PublishState(ctx context.Context) error {
	info, err := b.client.QuerySnapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return b.publish(b.topic("state"), data, true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) error {
	token := b.conn.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	return token.Error()
}

func (b *Bridge) topic(suffix string) string {
	return b.prefix + "/" + suffix
}
