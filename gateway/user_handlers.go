package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if !g.bindJSON(c, &req) {
		return
	}
	res, err := g.services.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "token": res.Token, "user": res.User})
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if !g.bindJSON(c, &req) {
		return
	}
	res, err := g.services.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": res.Token, "user": res.User})
}

func (g *Gateway) me(c *gin.Context) {
	profile, err := g.services.Auth.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}
