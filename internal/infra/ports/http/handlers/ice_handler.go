package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/FocusRoom/internal/application/config"
)

const turnCredentialTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
	now func() time.Time
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg, now: time.Now}
}

// IceServers отдает список ICE серверов для RTCPeerConnection.
// Если задан COTURN_SECRET, TURN получает временные креды.
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := h.cfg.ICEServers()

	if h.cfg.CoturnServer.Enabled() && h.cfg.CoturnServer.Secret != "" {
		username, password := h.ephemeralCredentials()

		for i := range servers {
			if servers[i].Username == "" {
				continue
			}

			servers[i] = webrtc.ICEServer{
				URLs:       servers[i].URLs,
				Username:   username,
				Credential: password,
			}
		}
	}

	return c.JSON(http.StatusOK, map[string][]webrtc.ICEServer{"iceServers": servers})
}

// ephemeralCredentials - схема coturn use-auth-secret: username = срок жизни,
// password = base64(HMAC-SHA1(secret, username))
func (h *IceHandler) ephemeralCredentials() (string, string) {
	username := fmt.Sprintf("%d", h.now().Add(turnCredentialTTL).Unix())

	mac := hmac.New(sha1.New, []byte(h.cfg.CoturnServer.Secret))
	mac.Write([]byte(username))

	return username, base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
