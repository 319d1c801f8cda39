package controller

import (
	"errors"
	"net/http"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/model"
	"order-workflow-service/internal/repository"
	"order-workflow-service/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	Service *service.OrderStatusService
}

func NewOrderController(s *service.OrderStatusService) *OrderController {
	return &OrderController{Service: s}
}

// httpStatus maps the service's typed errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNotReadyForReview):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingReason),
		errors.Is(err, service.ErrInvalidRecipients),
		errors.Is(err, service.ErrMissingTracking),
		errors.Is(err, service.ErrInvalidDocument),
		errors.Is(err, service.ErrOrderAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDependencyFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// POST /orders/init — no token; mirrors the rabbit consumer for portals
// without a broker.
func (ctl *OrderController) InitOrder(c *gin.Context) {
	var req dto.InitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ctl.Service.InitOrder(c.Request.Context(), req)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, res)
}

// PATCH /orders/:orderId/status — requires token
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	orderID := c.Param("orderId")

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := c.GetString("userID")
	isAdmin := c.GetBool("isAdmin")

	res, err := ctl.Service.Transition(
		c.Request.Context(),
		orderID,
		service.TransitionInput{
			Target:           model.OrderStatus(req.Status),
			Reason:           req.Reason,
			Notes:            req.Notes,
			Carrier:          req.Carrier,
			TrackingNumber:   req.TrackingNumber,
			Notify:           req.Notify,
			NotifyRecipients: req.NotifyRecipients,
		},
		actorID,
		isAdmin,
	)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	out := gin.H{"message": "status updated", "order": res.Order}
	if res.NotificationFailed {
		out["notification"] = "failed"
	}
	c.JSON(http.StatusOK, out)
}

// GET /orders/mine
func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	providerID := c.GetString("userID")
	orders, err := ctl.Service.GetByProviderID(c.Request.Context(), providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:orderId — owner or admin
func (ctl *OrderController) GetOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	actorID := c.GetString("userID")
	isAdmin := c.GetBool("isAdmin")

	o, err := ctl.Service.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	if !isAdmin && o.ProviderID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot view another provider's order"})
		return
	}

	c.JSON(http.StatusOK, o)
}

// GET /orders/:orderId/audit — newest first
func (ctl *OrderController) GetOrderAudit(c *gin.Context) {
	orderID := c.Param("orderId")
	actorID := c.GetString("userID")
	isAdmin := c.GetBool("isAdmin")

	o, err := ctl.Service.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if !isAdmin && o.ProviderID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot view another provider's order"})
		return
	}

	c.JSON(http.StatusOK, model.AuditTrail(o.History))
}

// GET /admin/orders
func (ctl *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := ctl.Service.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /admin/orders/status/:status
func (ctl *OrderController) GetOrdersByStatus(c *gin.Context) {
	status := model.OrderStatus(c.Param("status"))
	if !model.IsValidOrderStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	orders, err := ctl.Service.GetByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}
