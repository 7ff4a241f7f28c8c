package hooks

import (
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/samsameer/meshriderwave-sub002/pkg/auth"
)

// OnConnectAuthenticate checks the connecting client's credentials
// against the configured broker users.
func (h *PTTHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	user := string(pk.Connect.Username)
	pass := string(pk.Connect.Password)

	if h.validateUser(user, pass) {
		h.Log.Info("client authenticated", "username", user, "client", cl.ID)
		return true
	}
	h.Log.Info("client failed authentication check",
		"username", user, "remote", cl.Net.Remote)
	return false
}

func (h *PTTHook) validateUser(user, pass string) bool {
	for _, u := range h.config.Config.Mesh.Users {
		if u.Username != user {
			continue
		}
		return auth.HashPasswordWithSalt(pass, u.Salt) == u.PasswordHash
	}
	return false
}
