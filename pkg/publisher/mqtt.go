// Package publisher pushes the bill overview to an MQTT broker so home
// automation can pick it up.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"

	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/types"
)

const (
	DefaultTopicPrefix = "energiwatch"
	OverviewTopic      = "bill_overview"

	publishTimeout = 5 * time.Second
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes retained overview messages. The zero value and a nil
// Publisher are disabled and drop everything.
type Publisher struct {
	broker      string
	clientID    string
	username    string
	password    string
	topicPrefix string

	client client
}

// Configured registers the MQTT flags and connects when a broker is set.
func Configured() *Publisher {
	p := &Publisher{}
	broker := lflag.String("mqtt-broker", "", "MQTT broker host:port, publishing is disabled when empty")
	clientID := lflag.String("mqtt-client-id", "energiwatch", "MQTT client id")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	prefix := lflag.String("mqtt-topic-prefix", DefaultTopicPrefix, "Prefix for published topics")

	lflag.Do(func() {
		p.broker = *broker
		p.clientID = *clientID
		p.username = *username
		p.password = *password
		p.topicPrefix = strings.TrimSuffix(*prefix, "/")
		if err := p.Validate(); err != nil {
			panic(fmt.Sprintf("mqtt validation failed: %v", err))
		}
		if err := p.Init(context.Background()); err != nil {
			panic(fmt.Sprintf("mqtt init failed: %v", err))
		}
	})
	return p
}

// Validate ensures the configuration is valid.
func (p *Publisher) Validate() error {
	if p.broker == "" {
		return nil
	}
	if strings.Contains(p.broker, "://") {
		return fmt.Errorf("mqtt-broker must be host:port, got %s", p.broker)
	}
	if p.topicPrefix == "" {
		return fmt.Errorf("mqtt-topic-prefix is required")
	}
	return nil
}

// Init connects to the broker. It does nothing when no broker is set.
func (p *Publisher) Init(ctx context.Context) error {
	if p.broker == "" {
		return nil
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.broker))
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if p.username != "" {
		opts.SetUsername(p.username)
	}
	if p.password != "" {
		opts.SetPassword(p.password)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	p.client = c
	log.Ctx(ctx).InfoContext(ctx, "connected to mqtt broker", slog.String("broker", p.broker))
	return nil
}

func newWithClient(c client, topicPrefix string) *Publisher {
	return &Publisher{client: c, topicPrefix: topicPrefix}
}

// Enabled reports whether messages go anywhere.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// Topic returns the full topic for name.
func (p *Publisher) Topic(name string) string {
	return p.topicPrefix + "/" + name
}

// PublishOverview publishes o retained under <prefix>/bill_overview.
// Failures are logged.
func (p *Publisher) PublishOverview(ctx context.Context, o types.BillOverview) {
	if !p.Enabled() {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to marshal bill overview", slog.Any("error", err))
		return
	}
	topic := p.Topic(OverviewTopic)
	token := p.client.Publish(topic, 1, true, b)
	if !token.WaitTimeout(publishTimeout) {
		log.Ctx(ctx).WarnContext(ctx, "timed out publishing bill overview", slog.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to publish bill overview", slog.String("topic", topic), slog.Any("error", err))
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.Enabled() {
		p.client.Disconnect(250)
	}
}
