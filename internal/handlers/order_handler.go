package handlers

import (
	"fmt"

	"harvestlink/internal/middleware"
	"harvestlink/internal/models"
	"harvestlink/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes on an authenticated router.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/my/orders", h.HandleGetMyOrders)

	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", middleware.RoleRequired(models.RoleCustomer), h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
	orderRoutes.Put("/:id/status", middleware.RoleRequired(models.RoleFarmer), h.HandleUpdateOrderStatus)
	orderRoutes.Post("/:id/verify-pin", h.HandleVerifyPin)
	orderRoutes.Post("/:id/confirm-delivery", middleware.RoleRequired(models.RoleFarmer), h.HandleConfirmDelivery)
	orderRoutes.Post("/:id/rate", middleware.RoleRequired(models.RoleCustomer), h.HandleRateOrder)
	orderRoutes.Get("/:id/receipt", h.HandleGetReceipt)
}

// HandleGetMyOrders lists the caller's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListForActor(middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetForActor(middleware.ActorFromContext(c), orderID)
	if err != nil {
		return respondError(c, fmt.Sprintf("Could not retrieve order %s", orderID), err)
	}
	return c.JSON(order)
}

// HandleCreateOrder creates a new order. The response carries the delivery
// PIN; it is never shown again.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	created, err := h.service.CreateOrder(middleware.ActorFromContext(c), req)
	if err != nil {
		return respondError(c, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return badBody(c, err)
	}
	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	order, err := h.service.UpdateStatus(middleware.ActorFromContext(c), orderID, updateData.Status)
	if err != nil {
		return respondError(c, "Order status update failed", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, order.Status),
		"order":   order,
	})
}

type pinRequest struct {
	Pin string `json:"pin" validate:"required"`
}

// HandleVerifyPin checks a delivery PIN without changing the order.
func (h *OrderHandler) HandleVerifyPin(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	valid, err := h.service.VerifyDeliveryPin(middleware.ActorFromContext(c), c.Params("id"), req.Pin)
	if err != nil {
		return respondError(c, "PIN verification failed", err)
	}
	return c.JSON(fiber.Map{"isValid": valid})
}

// HandleConfirmDelivery checks the PIN and marks the order delivered.
func (h *OrderHandler) HandleConfirmDelivery(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.service.ConfirmDelivery(middleware.ActorFromContext(c), c.Params("id"), req.Pin)
	if err != nil {
		return respondError(c, "Delivery confirmation failed", err)
	}
	return c.JSON(fiber.Map{
		"message": "Delivery confirmed",
		"order":   order,
	})
}

type rateRequest struct {
	Rating *int   `json:"rating" validate:"required"`
	Review string `json:"review" validate:"max=2000"`
}

// HandleRateOrder attaches a rating and review to a delivered order.
func (h *OrderHandler) HandleRateOrder(c *fiber.Ctx) error {
	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.service.Rate(middleware.ActorFromContext(c), c.Params("id"), *req.Rating, req.Review)
	if err != nil {
		return respondError(c, "Could not rate order", err)
	}
	return c.JSON(fiber.Map{
		"message": "Rating saved",
		"order":   order,
	})
}

// HandleDeleteOrder deletes a pending or cancelled order.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.Delete(middleware.ActorFromContext(c), orderID); err != nil {
		return respondError(c, "Could not delete order", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s deleted successfully", orderID),
	})
}

// HandleGetReceipt downloads the order receipt as a PDF.
func (h *OrderHandler) HandleGetReceipt(c *fiber.Ctx) error {
	pdf, filename, err := h.service.Receipt(middleware.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, "Could not render receipt", err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Send(pdf)
}
