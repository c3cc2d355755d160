package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pedidoflow/auth"
)

// NewRouter mounts the REST surface and the websocket endpoint. wsHandler is
// taken as a plain gin.HandlerFunc so the chat package stays free of routing
// concerns.
func NewRouter(server *Server, verifier TokenVerifier, wsHandler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/auth/register", server.register)
		api.POST("/auth/login", server.login)

		api.GET("/ventures", server.listVentures)
		api.GET("/ventures/mine", RequireAuth(verifier), server.myVentures)
		api.GET("/ventures/:id", server.getVenture)

		orders := api.Group("/orders", RequireAuth(verifier))
		{
			orders.POST("", server.createOrder)
			orders.GET("/purchases", server.listPurchases)
			orders.GET("/sales", server.listSales)
			orders.GET("/:id", server.getOrder)
			orders.PUT("/:id", server.updateOrder)
			orders.PATCH("/:id/address", server.updateAddress)
			orders.POST("/:id/accept", server.acceptOrder)
			orders.POST("/:id/complete", server.completeOrder)
			orders.POST("/:id/cancel", server.cancelOrder)
			orders.DELETE("/:id", server.deleteOrder)

			orders.POST("/:id/report", server.fileReport)
			orders.GET("/:id/report", server.getReport)
			orders.POST("/:id/report/resolve", RequireRole(auth.RoleAdmin), server.resolveReport)
		}
	}

	// The websocket client authenticates inside the handler; browsers cannot
	// set headers on the upgrade request, so it also accepts a token query
	// parameter.
	r.GET("/ws", wsHandler)

	return r
}
