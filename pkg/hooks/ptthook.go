// Package hooks contains the embedded broker hooks for the mesh side of
// the bridge: client authentication, topic ACLs, and the normalization
// of mesh PTT traffic into gateway events.
package hooks

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	mqttauth "github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/gateway"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
	"github.com/samsameer/meshriderwave-sub002/pkg/mesh"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
	"github.com/samsameer/meshriderwave-sub002/pkg/selector"
	"github.com/samsameer/meshriderwave-sub002/pkg/store"
)

const provisioningTopic = "prov/update"

// PTTHookOptions contains configuration settings for the hook.
type PTTHookOptions struct {
	Server   *mqtt.Server
	Config   *config.Configuration
	Core     *gateway.Core
	Selector *selector.Selector
	Mapper   *identity.Mapper
	Storage  *store.Stores
}

var _ gateway.Adapter = (*PTTHook)(nil)

// PTTHook bridges the embedded broker to the gateway core. Inbound mesh
// events are normalized and handed to the core; outbound commands are
// published on the mesh command topic. Audio payloads cross the broker
// sealed under the per-group channel key.
type PTTHook struct {
	mqtt.HookBase
	config *PTTHookOptions

	eventsFilter    mqttauth.RString
	commandsFilter  mqttauth.RString
	heartbeatFilter mqttauth.RString
	commandTopic    string

	groupMasterKey []byte
	keyLock        sync.Mutex
	channelKeys    map[string][]byte
}

func (h *PTTHook) ID() string {
	return "ptt-hook"
}

func (h *PTTHook) Provides(b byte) bool {
	switch b {
	case mqtt.OnConnectAuthenticate,
		mqtt.OnACLCheck,
		mqtt.OnConnect,
		mqtt.OnDisconnect,
		mqtt.OnPublish:
		return true
	}
	return false
}

func (h *PTTHook) Init(config any) error {
	if _, ok := config.(*PTTHookOptions); !ok && config != nil {
		return mqtt.ErrInvalidConfigType
	}
	h.config = config.(*PTTHookOptions)
	if h.config.Server == nil || h.config.Core == nil || h.config.Selector == nil {
		return mqtt.ErrInvalidConfigType
	}

	cfg := h.config.Config
	prefix := cfg.Mesh.TopicPrefix
	h.eventsFilter = mqttauth.RString(fmt.Sprintf("%s/%s/events", prefix, cfg.Mesh.MeshID))
	h.commandsFilter = mqttauth.RString(fmt.Sprintf("%s/%s/commands", prefix, cfg.Mesh.MeshID))
	h.heartbeatFilter = mqttauth.RString("gw/heartbeat/+")
	h.commandTopic = fmt.Sprintf("%s/%s/commands", prefix, cfg.Mesh.MeshID)
	h.channelKeys = make(map[string][]byte)

	if cfg.Mcptt.GroupKey != "" {
		raw, err := hex.DecodeString(cfg.Mcptt.GroupKey)
		if err != nil {
			return fmt.Errorf("invalid MCPTT group key: %w", err)
		}
		h.groupMasterKey = raw
	}

	h.Log.Info("initialised", "events", string(h.eventsFilter), "commands", h.commandTopic)
	return nil
}

// Domain implements gateway.Adapter.
func (h *PTTHook) Domain() models.Domain {
	return models.DomainMesh
}

// Publish delivers an outbound gateway event onto the mesh command topic.
func (h *PTTHook) Publish(out *models.Outbound) error {
	ev := out.Event
	if ev.Frame != nil && h.groupMasterKey != nil {
		key, err := h.channelKey(ev.GroupID)
		if err != nil {
			return err
		}
		sealed, err := mesh.SealFrame(key, ev.Frame.Seq, ev.Identity, ev.Frame.Payload)
		if err != nil {
			return err
		}
		frame := *ev.Frame
		frame.Payload = sealed
		ev.Frame = &frame
	}
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	return h.config.Server.Publish(h.commandTopic, payload, false, 0)
}

func (h *PTTHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	h.Log.Info("client connected", "client", cl.ID)
	return nil
}

func (h *PTTHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	if err != nil {
		h.Log.Info("client disconnected", "client", cl.ID, "expire", expire, "error", err)
	} else {
		h.Log.Info("client disconnected", "client", cl.ID, "expire", expire)
	}
}

// OnACLCheck limits mesh clients to the PTT topic tree: events and
// heartbeats are write-only, commands are read-only.
func (h *PTTHook) OnACLCheck(cl *mqtt.Client, topic string, write bool) bool {
	if string(cl.Properties.Username) == "admin" {
		return true
	}
	if topic == "will" || topic == "/will" {
		return true
	}
	switch {
	case h.eventsFilter.FilterMatches(topic), h.heartbeatFilter.FilterMatches(topic):
		return write
	case h.commandsFilter.FilterMatches(topic):
		return !write
	case topic == provisioningTopic:
		return write
	}
	h.Log.Debug("client failed ACL check", "client", cl.ID, "topic", topic, "write", write)
	return false
}

func (h *PTTHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	switch {
	case strings.HasPrefix(pk.TopicName, "gw/heartbeat/"):
		h.handleHeartbeat(cl, pk)
	case h.eventsFilter.FilterMatches(pk.TopicName):
		h.handleEvent(cl, pk)
	case pk.TopicName == provisioningTopic:
		go h.reloadMappings()
	}
	return pk, nil
}

func (h *PTTHook) handleHeartbeat(cl *mqtt.Client, pk packets.Packet) {
	hb, err := models.DecodeHeartbeat(pk.Payload)
	if err != nil {
		h.Log.Warn("failed to decode heartbeat", "client", cl.ID, "error", err)
		return
	}
	if hb.NodeID == "" {
		hb.NodeID = strings.TrimPrefix(pk.TopicName, "gw/heartbeat/")
	}
	h.config.Selector.UpdateHeartbeat(hb)
}

func (h *PTTHook) handleEvent(cl *mqtt.Client, pk packets.Packet) {
	ev, err := models.DecodeEvent(pk.Payload)
	if err != nil {
		h.Log.Warn("failed to decode mesh event", "client", cl.ID, "error", err)
		return
	}
	// Clients cannot speak for the other domain regardless of payload.
	ev.Domain = models.DomainMesh

	if ev.Frame != nil && h.groupMasterKey != nil {
		if ev.GroupID == "" {
			h.Log.Warn("mesh audio frame without group, dropped", "client", cl.ID, "call_id", ev.CallID)
			return
		}
		key, err := h.channelKey(ev.GroupID)
		if err != nil {
			h.Log.Warn("failed to derive channel key", "group_id", ev.GroupID, "error", err)
			return
		}
		opened, err := mesh.OpenFrame(key, ev.Frame.Seq, ev.Identity, ev.Frame.Payload)
		if err != nil {
			h.Log.Warn("failed to open sealed audio frame",
				"client", cl.ID, "call_id", ev.CallID, "error", err)
			return
		}
		ev.Frame.Payload = opened
	}
	if ev.Frame != nil && ev.Frame.ReceivedAt.IsZero() {
		ev.Frame.ReceivedAt = time.Now()
	}

	if err := h.config.Core.HandleEvent(ev); err != nil {
		h.Log.Debug("mesh event not handled", "type", ev.Type, "call_id", ev.CallID, "error", err)
	}
}

func (h *PTTHook) reloadMappings() {
	if h.config.Mapper == nil || h.config.Storage == nil {
		return
	}
	if err := h.config.Mapper.Load(context.Background(), h.config.Storage.Identities); err != nil {
		h.Log.Error("failed to reload identity mappings", "error", err)
	}
}

func (h *PTTHook) channelKey(groupID string) ([]byte, error) {
	h.keyLock.Lock()
	defer h.keyLock.Unlock()
	if key, ok := h.channelKeys[groupID]; ok {
		return key, nil
	}
	key, err := identity.DeriveChannelKey(h.groupMasterKey, groupID)
	if err != nil {
		return nil, err
	}
	h.channelKeys[groupID] = key
	return key, nil
}
