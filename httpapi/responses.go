package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pedidoflow/auth"
	"pedidoflow/dispute"
	"pedidoflow/order"
	"pedidoflow/venture"
)

// writeError maps a domain failure onto the wire. Anything without a mapping
// is an internal error: logged in full, returned opaque.
func writeError(c *gin.Context, err error) {
	var overr *order.ValidationError
	var dverr *dispute.ValidationError

	switch {
	case errors.As(err, &overr), errors.As(err, &dverr),
		errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, order.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not allowed to act on this order"})
	case errors.Is(err, order.ErrNotFound), errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, venture.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, order.ErrConflict), errors.Is(err, dispute.ErrOpenDispute),
		errors.Is(err, dispute.ErrAlreadyResolved), errors.Is(err, auth.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrStorageTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage timeout, retry"})
	default:
		slog.Error("httpapi: request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type addressView struct {
	Line       string `json:"line"`
	Department string `json:"department"`
	City       string `json:"city"`
}

type lineItemView struct {
	ProductID   string          `json:"productId"`
	Description string          `json:"description"`
	Units       int             `json:"units"`
	AgreedPrice decimal.Decimal `json:"agreedPrice"`
}

type orderView struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyerId"`
	SellerID    string          `json:"sellerId"`
	VentureID   string          `json:"ventureId"`
	Status      order.Status    `json:"status"`
	Item        lineItemView    `json:"item"`
	Total       decimal.Decimal `json:"total"`
	Address     *addressView    `json:"shippingAddress,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toOrderView(o order.Order) orderView {
	v := orderView{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		VentureID: o.VentureID,
		Status:    o.Status,
		Item: lineItemView{
			ProductID:   o.LineItem.ProductID,
			Description: o.LineItem.Description,
			Units:       o.LineItem.Units,
			AgreedPrice: o.LineItem.AgreedPrice,
		},
		Total:       o.Total,
		CreatedAt:   o.CreatedAt,
		AcceptedAt:  o.AcceptedAt,
		CompletedAt: o.CompletedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.Address != nil {
		v.Address = &addressView{
			Line:       o.Address.Line,
			Department: o.Address.Department,
			City:       o.Address.City,
		}
	}
	return v
}

func toOrderViews(orders []order.Order) []orderView {
	views := make([]orderView, len(orders))
	for i, o := range orders {
		views[i] = toOrderView(o)
	}
	return views
}

type sanctionView struct {
	ID              string               `json:"id"`
	Type            dispute.SanctionType `json:"type"`
	ReasonText      string               `json:"reasonText"`
	StartAt         time.Time            `json:"startAt"`
	EndAt           *time.Time           `json:"endAt,omitempty"`
	DurationDays    *int                 `json:"durationDays,omitempty"`
	IssuedByAdminID string               `json:"issuedByAdminId"`
	Active          bool                 `json:"active"`
}

type disputeView struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"orderId"`
	ReporterID  string         `json:"reporterId"`
	ReportedID  string         `json:"reportedId"`
	Reason      dispute.Reason `json:"reason"`
	Description string         `json:"description"`
	Resolved    bool           `json:"resolved"`
	ActionTaken dispute.Action `json:"actionTaken,omitempty"`
	FiledAt     time.Time      `json:"filedAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
	Sanctions   []sanctionView `json:"sanctions,omitempty"`
}

func toDisputeView(r dispute.Record) disputeView {
	v := disputeView{
		ID:          r.ID,
		OrderID:     r.OrderID,
		ReporterID:  r.ReporterID,
		ReportedID:  r.ReportedID,
		Reason:      r.Reason,
		Description: r.Description,
		Resolved:    r.Resolved,
		ActionTaken: r.ActionTaken,
		FiledAt:     r.FiledAt,
		ResolvedAt:  r.ResolvedAt,
	}
	for _, s := range r.Sanctions {
		v.Sanctions = append(v.Sanctions, sanctionView{
			ID:              s.ID,
			Type:            s.Type,
			ReasonText:      s.ReasonText,
			StartAt:         s.StartAt,
			EndAt:           s.EndAt,
			DurationDays:    s.DurationDays,
			IssuedByAdminID: s.IssuedByAdminID,
			Active:          s.Active,
		})
	}
	return v
}

type userView struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     auth.Role `json:"role"`
}

func toUserView(u auth.User) userView {
	return userView{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

type ventureView struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toVentureView(p venture.Profile) ventureView {
	return ventureView{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Verified:    p.Verified,
		CreatedAt:   p.CreatedAt,
	}
}

func toVentureViews(profiles []venture.Profile) []ventureView {
	views := make([]ventureView, len(profiles))
	for i, p := range profiles {
		views[i] = toVentureView(p)
	}
	return views
}
