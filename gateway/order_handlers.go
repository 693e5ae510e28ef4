package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/service"
	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	FirstName     string                   `json:"firstName"`
	LastName      string                   `json:"lastName"`
	Phone         string                   `json:"phone"`
	Email         string                   `json:"email"`
	Address       string                   `json:"address"`
	City          string                   `json:"city"`
	Zipcode       string                   `json:"zipcode"`
	PaymentMethod models.PaymentMethod     `json:"paymentMethod"`
	Subtotal      float64                  `json:"subtotal"`
	Tax           float64                  `json:"tax"`
	Total         float64                  `json:"total"`
	Items         []service.OrderLineInput `json:"items"`
}

type confirmRequest struct {
	SessionID string `json:"session_id"`
}

func (g *Gateway) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !g.bindJSON(c, &req) {
		return
	}

	res, err := g.services.Orders.CreateOrder(c.Request.Context(), currentUser(c), service.CreateOrderInput{
		Contact: models.Contact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Email:     req.Email,
		},
		Shipping: models.Shipping{
			Address: req.Address,
			City:    req.City,
			Zipcode: req.Zipcode,
		},
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
		Subtotal:      req.Subtotal,
		Tax:           req.Tax,
		Total:         req.Total,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// confirmPayment accepts the session id as a query parameter or a JSON body.
func (g *Gateway) confirmPayment(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" && c.Request.Method == http.MethodPost {
		var req confirmRequest
		if !g.bindJSON(c, &req) {
			return
		}
		sessionID = req.SessionID
	}

	order, err := g.services.Orders.ConfirmPayment(c.Request.Context(), currentUser(c), sessionID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) getOrders(c *gin.Context) {
	orders, err := g.services.Orders.GetOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.GetOrder(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("email"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) updateOrder(c *gin.Context) {
	var req service.ContactUpdate
	if !g.bindJSON(c, &req) {
		return
	}
	order, err := g.services.Orders.UpdateOrder(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("email"), req)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) getAllOrders(c *gin.Context) {
	orders, err := g.services.Orders.ListAll(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) updateAnyOrder(c *gin.Context) {
	var req service.AdminOrderUpdate
	if !g.bindJSON(c, &req) {
		return
	}
	order, err := g.services.Orders.UpdateAnyOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) paymentFollowUps(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	attempts, err := g.services.Orders.FollowUps(c.Request.Context(), limit)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": attempts})
}

func (g *Gateway) orderHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := g.services.Orders.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": logs})
}
