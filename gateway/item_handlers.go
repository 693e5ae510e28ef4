package gateway

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/service"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) listItems(c *gin.Context) {
	items, err := g.services.Catalog.List(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

func (g *Gateway) getItem(c *gin.Context) {
	item, err := g.services.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// createItem takes a multipart form: name, description, category, price, rating, hearts
// and an optional image file.
func (g *Gateway) createItem(c *gin.Context) {
	maxBytes := g.config.Storage.MaxUploadMB << 20
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	in := service.NewItem{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Category:    models.Category(c.PostForm("category")),
	}
	var err error
	if in.Price, err = formFloat(c, "price"); err != nil {
		g.respondError(c, err)
		return
	}
	if in.Rating, err = formFloat(c, "rating"); err != nil {
		g.respondError(c, err)
		return
	}
	hearts, err := formFloat(c, "hearts")
	if err != nil {
		g.respondError(c, err)
		return
	}
	in.Hearts = int64(hearts)

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := file.Open()
		if err != nil {
			g.respondError(c, apperr.Wrap(apperr.KindInvalidInput, "Invalid image upload", err))
			return
		}
		defer f.Close()
		in.Image = f
		in.ImageName = file.Filename
		in.ImageType = file.Header.Get("Content-Type")
	case !errors.Is(err, http.ErrMissingFile):
		g.respondError(c, apperr.Wrap(apperr.KindInvalidInput, "Invalid image upload", err))
		return
	}

	item, err := g.services.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Item Added Successfully", "data": item})
}

func (g *Gateway) deleteItem(c *gin.Context) {
	if err := g.services.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item Removed Successfully"})
}

func (g *Gateway) heartItem(c *gin.Context) {
	item, err := g.services.Catalog.Heart(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// formFloat reads an optional finite numeric form field; an empty value is zero.
func formFloat(c *gin.Context, key string) (float64, error) {
	raw := c.PostForm(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.InvalidInput("Invalid " + key)
	}
	return v, nil
}
