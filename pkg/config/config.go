package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Configuration is the full gateway daemon configuration.
type Configuration struct {
	ListenAddr    string
	APIListenAddr string
	LogLevel      string
	Database      DatabaseSettings
	Mesh          MeshSettings
	Mcptt         McpttSettings
	Floor         FloorSettings
	Transcode     TranscodeSettings
	Selector      SelectorSettings
	Calls         CallSettings
}

type DatabaseSettings struct {
	User     string
	Password string
	Host     string
	DB       string
}

// DSN returns the Postgres connection string.
func (d DatabaseSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.DB)
}

// MeshSettings configures the mesh side of the bridge: the embedded broker
// topics the mesh adapter publishes on and the floor-control behavior of
// the mesh protocol.
type MeshSettings struct {
	TopicPrefix string // defaults to "ptt"
	MeshID      string
	// AnnounceRequests controls whether floor requests from the other
	// domain are announced into the mesh before a grant exists.
	AnnounceRequests bool
	// KeepaliveInterval is the mesh floor-control keepalive period.
	KeepaliveInterval time.Duration
	// Users are broker credentials accepted by the auth hook.
	Users []BrokerUser
}

type BrokerUser struct {
	Username     string
	PasswordHash string
	Salt         string
}

// McpttSettings configures the connection to the external MCPTT client
// stack, which exposes its call/floor/RTP events over a local broker.
type McpttSettings struct {
	BrokerURL        string
	ClientID         string
	Username         string
	Password         string
	EventTopic       string // defaults to "mcptt/events/#"
	CommandTopic     string // defaults to "mcptt/commands"
	AnnounceRequests bool
	// KeepaliveInterval is the MCPTT floor keepalive (T132-equivalent).
	KeepaliveInterval time.Duration
	// GroupKey is the hex-encoded MCPTT group master key. Mesh channel
	// keys are derived from it one-way, per group.
	GroupKey string
}

// FloorSettings tunes the floor mediator.
type FloorSettings struct {
	// RevokeGrace bounds how long a Revoking call waits for the holder's
	// adapter to acknowledge before forcing Idle. Default 300ms.
	RevokeGrace time.Duration
	// RequestTimeout overrides the per-domain default of twice the
	// domain's keepalive interval when set.
	RequestTimeout time.Duration
}

// TranscodeSettings tunes the audio transcode path.
type TranscodeSettings struct {
	// Deadline drops frames not delivered within this window of receipt.
	// PTT favors low latency over completeness. Default 60ms.
	Deadline time.Duration
	// ResetGapFrames is the count of consecutive missing frames after
	// which decoder/encoder state is reset to avoid prediction drift.
	ResetGapFrames uint32
	// OpusBitrate in bits per second. Default 12000.
	OpusBitrate int
}

// SelectorSettings tunes gateway node selection and failover.
type SelectorSettings struct {
	HeartbeatInterval time.Duration
	// MissedHeartbeats before a node is considered lost. Default 3.
	MissedHeartbeats int
	MinLTEQuality    float64
	// MaxLatency normalizes the latency score term. Default 500ms.
	MaxLatency time.Duration
	Weights    ScoreWeights
}

// ScoreWeights are the selection score coefficients. They must sum to 1.
type ScoreWeights struct {
	LTEQuality float64
	Load       float64
	Battery    float64
	Latency    float64
}

// CallSettings bounds call resources.
type CallSettings struct {
	// MaxConcurrent caps live calls; setups beyond it are shed. Default 64.
	MaxConcurrent int
	// IdleTimeout destroys a call with no activity. Default 5m.
	IdleTimeout time.Duration
}

// Load reads the configuration file and applies defaults.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/meshriderwave")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("MRW")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Configuration
	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddr", ":1883")
	v.SetDefault("APIListenAddr", ":8080")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("Mesh.TopicPrefix", "ptt")
	v.SetDefault("Mesh.KeepaliveInterval", "4s")
	v.SetDefault("Mesh.AnnounceRequests", true)
	v.SetDefault("Mcptt.EventTopic", "mcptt/events/#")
	v.SetDefault("Mcptt.CommandTopic", "mcptt/commands")
	v.SetDefault("Mcptt.KeepaliveInterval", "4s")
	v.SetDefault("Floor.RevokeGrace", "300ms")
	v.SetDefault("Transcode.Deadline", "60ms")
	v.SetDefault("Transcode.ResetGapFrames", 5)
	v.SetDefault("Transcode.OpusBitrate", 12000)
	v.SetDefault("Selector.HeartbeatInterval", "1s")
	v.SetDefault("Selector.MissedHeartbeats", 3)
	v.SetDefault("Selector.MinLTEQuality", 0.2)
	v.SetDefault("Selector.MaxLatency", "500ms")
	v.SetDefault("Selector.Weights.LTEQuality", 0.4)
	v.SetDefault("Selector.Weights.Load", 0.3)
	v.SetDefault("Selector.Weights.Battery", 0.2)
	v.SetDefault("Selector.Weights.Latency", 0.1)
	v.SetDefault("Calls.MaxConcurrent", 64)
	v.SetDefault("Calls.IdleTimeout", "5m")
}
