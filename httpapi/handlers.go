package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pedidoflow/auth"
	"pedidoflow/dispute"
	"pedidoflow/order"
	"pedidoflow/venture"
)

// Server groups the services behind the REST surface.
type Server struct {
	users    *auth.Service
	orders   *order.Service
	disputes *dispute.Service
	ventures *venture.Service
}

// NewServer builds the REST handler set.
func NewServer(users *auth.Service, orders *order.Service, disputes *dispute.Service, ventures *venture.Service) *Server {
	return &Server{users: users, orders: orders, disputes: disputes, ventures: ventures}
}

func (s *Server) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := s.users.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserView(*user))
}

func (s *Server) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := s.users.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": result.Token, "user": toUserView(result.User)})
}

type addressRequest struct {
	Line       string `json:"line" binding:"required"`
	Department string `json:"department" binding:"required"`
	City       string `json:"city" binding:"required"`
}

func (r addressRequest) domain() order.ShippingAddress {
	return order.ShippingAddress{Line: r.Line, Department: r.Department, City: r.City}
}

type createOrderRequest struct {
	SellerID  string `json:"sellerId" binding:"required,uuid"`
	VentureID string `json:"ventureId" binding:"required,uuid"`
	Item      struct {
		ProductID   string          `json:"productId" binding:"required"`
		Description string          `json:"description" binding:"required"`
		Units       int             `json:"units" binding:"required"`
		AgreedPrice decimal.Decimal `json:"agreedPrice"`
	} `json:"item" binding:"required"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress *addressRequest `json:"shippingAddress"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	params := order.CreateParams{
		SellerID:  req.SellerID,
		VentureID: req.VentureID,
		LineItem: order.LineItem{
			ProductID:   req.Item.ProductID,
			Description: req.Item.Description,
			Units:       req.Item.Units,
			AgreedPrice: req.Item.AgreedPrice,
		},
		Total: req.Total,
	}
	if req.ShippingAddress != nil {
		addr := req.ShippingAddress.domain()
		params.Address = &addr
	}
	o, err := s.orders.Create(c.Request.Context(), actorID(c), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(o))
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.Get(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (s *Server) listPurchases(c *gin.Context) {
	orders, err := s.orders.ListPurchases(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

func (s *Server) listSales(c *gin.Context) {
	orders, err := s.orders.ListSales(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

type updateOrderRequest struct {
	Description string          `json:"description" binding:"required"`
	Units       int             `json:"units" binding:"required"`
	AgreedPrice decimal.Decimal `json:"agreedPrice"`
	Total       decimal.Decimal `json:"total"`
}

func (s *Server) updateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := s.orders.UpdateDetails(c.Request.Context(), actorID(c), c.Param("id"), order.DetailsParams{
		Description: req.Description,
		Units:       req.Units,
		AgreedPrice: req.AgreedPrice,
		Total:       req.Total,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (s *Server) updateAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := s.orders.UpdateShippingAddress(c.Request.Context(), actorID(c), c.Param("id"), req.domain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (s *Server) acceptOrder(c *gin.Context) {
	s.transition(c, s.orders.Accept)
}

func (s *Server) completeOrder(c *gin.Context) {
	s.transition(c, s.orders.Complete)
}

func (s *Server) cancelOrder(c *gin.Context) {
	s.transition(c, s.orders.Cancel)
}

func (s *Server) transition(c *gin.Context, op func(ctx context.Context, actorID, orderID string) (order.Order, error)) {
	o, err := op(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (s *Server) deleteOrder(c *gin.Context) {
	if _, err := s.orders.SoftDelete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type fileReportRequest struct {
	Reason      dispute.Reason `json:"reason" binding:"required"`
	Description string         `json:"description" binding:"required"`
}

func (s *Server) fileReport(c *gin.Context) {
	var req fileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := s.disputes.FileReport(c.Request.Context(), actorID(c), dispute.FileParams{
		OrderID:     c.Param("id"),
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDisputeView(record))
}

func (s *Server) getReport(c *gin.Context) {
	record, err := s.disputes.Get(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDisputeView(record))
}

type sanctionRequest struct {
	Type         dispute.SanctionType `json:"type" binding:"required"`
	ReasonText   string               `json:"reasonText" binding:"required"`
	StartAt      *time.Time           `json:"startAt"`
	EndAt        *time.Time           `json:"endAt"`
	DurationDays *int                 `json:"durationDays"`
}

type resolveReportRequest struct {
	ActionTaken dispute.Action    `json:"actionTaken" binding:"required"`
	Sanctions   []sanctionRequest `json:"sanctions"`
}

func (s *Server) resolveReport(c *gin.Context) {
	var req resolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	input := dispute.ResolveInput{
		OrderID:     c.Param("id"),
		ActionTaken: req.ActionTaken,
	}
	for _, sr := range req.Sanctions {
		input.Sanctions = append(input.Sanctions, dispute.SanctionInput{
			Type:         sr.Type,
			ReasonText:   sr.ReasonText,
			StartAt:      sr.StartAt,
			EndAt:        sr.EndAt,
			DurationDays: sr.DurationDays,
		})
	}
	record, err := s.disputes.Resolve(c.Request.Context(), actorID(c), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDisputeView(record))
}

func (s *Server) listVentures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	profiles, err := s.ventures.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ventures": toVentureViews(profiles)})
}

func (s *Server) getVenture(c *gin.Context) {
	profile, err := s.ventures.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVentureView(profile))
}

func (s *Server) myVentures(c *gin.Context) {
	profiles, err := s.ventures.ListByOwner(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ventures": toVentureViews(profiles)})
}
