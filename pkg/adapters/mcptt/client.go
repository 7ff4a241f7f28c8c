// Package mcptt connects the gateway to the external MCPTT client stack,
// which exposes its normalized call, floor and media events over a local
// broker. The adapter subscribes to the event topic and publishes gateway
// commands back.
package mcptt

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/gateway"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

var _ gateway.Adapter = (*Client)(nil)

// Client is the MCPTT domain adapter.
type Client struct {
	client       mqtt.Client
	cfg          config.McpttSettings
	core         *gateway.Core
	commandTopic string
	log          *slog.Logger
}

// NewClient connects to the MCPTT event broker and begins forwarding
// events into the core.
func NewClient(cfg config.McpttSettings, core *gateway.Core, log *slog.Logger) (*Client, error) {
	c := &Client{
		cfg:          cfg,
		core:         core,
		commandTopic: cfg.CommandTopic,
		log:          log.With("component", "mcptt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MCPTT broker: %w", token.Error())
	}
	return c, nil
}

// onConnect (re)subscribes; paho drops subscriptions on reconnect unless
// session resumption is configured.
func (c *Client) onConnect(client mqtt.Client) {
	c.log.Info("connected to MCPTT broker", "broker", c.cfg.BrokerURL)
	token := client.Subscribe(c.cfg.EventTopic, 1, c.onEvent)
	go func() {
		if token.Wait() && token.Error() != nil {
			c.log.Error("failed to subscribe to MCPTT events",
				"topic", c.cfg.EventTopic, "error", token.Error())
		}
	}()
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("MCPTT broker connection lost", "error", err)
}

func (c *Client) onEvent(_ mqtt.Client, msg mqtt.Message) {
	ev, err := models.DecodeEvent(msg.Payload())
	if err != nil {
		c.log.Warn("failed to decode MCPTT event", "topic", msg.Topic(), "error", err)
		return
	}
	ev.Domain = models.DomainMCPTT
	if ev.Frame != nil && ev.Frame.ReceivedAt.IsZero() {
		ev.Frame.ReceivedAt = time.Now()
	}

	if err := c.core.HandleEvent(ev); err != nil {
		c.log.Debug("MCPTT event not handled", "type", ev.Type, "call_id", ev.CallID, "error", err)
	}
}

// Domain implements gateway.Adapter.
func (c *Client) Domain() models.Domain {
	return models.DomainMCPTT
}

// Publish implements gateway.Adapter.
func (c *Client) Publish(out *models.Outbound) error {
	payload, err := out.Event.Encode()
	if err != nil {
		return err
	}
	token := c.client.Publish(c.commandTopic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
