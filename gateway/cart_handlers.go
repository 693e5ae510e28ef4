package gateway

import (
	"net/http"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ItemID   string `json:"itemId"`
	Quantity *int   `json:"quantity"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (g *Gateway) getCart(c *gin.Context) {
	lines, err := g.services.Cart.GetCart(c.Request.Context(), currentUser(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cartItems": lines})
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req addToCartRequest
	if !g.bindJSON(c, &req) {
		return
	}
	if req.ItemID == "" {
		g.respondError(c, apperr.InvalidInput("Item ID is required"))
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line, err := g.services.Cart.AddItem(c.Request.Context(), currentUser(c), req.ItemID, quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cartItem": line})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req updateCartRequest
	if !g.bindJSON(c, &req) {
		return
	}
	line, err := g.services.Cart.UpdateQuantity(c.Request.Context(), currentUser(c), c.Param("id"), req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cartItem": line})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	id := c.Param("id")
	if err := g.services.Cart.RemoveItem(c.Request.Context(), currentUser(c), id); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "_id": id, "message": "Item removed from cart"})
}

func (g *Gateway) clearCart(c *gin.Context) {
	n, err := g.services.Cart.ClearCart(c.Request.Context(), currentUser(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": n})
}
