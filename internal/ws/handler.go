package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localTenantID = "tenant_id"

func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		tenantID, ok := c.Locals(localTenantID).(string)
		if !ok || tenantID == "" {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:      hub,
			conn:     c,
			tenantID: tenantID,
			send:     make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware accepts websocket upgrades carrying a ?tenant= query.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tenantID := c.Query("tenant")
		if tenantID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "tenant query parameter is required")
		}

		c.Locals("allowed", true)
		c.Locals(localTenantID, tenantID)
		return c.Next()
	}
}
