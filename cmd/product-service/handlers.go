package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/money"
	prod "github.com/MikeMC777/ordenes-restaurante/internal/product"
)

// registerRoutes mounts the catalog. Reads are public; edits need an admin token.
func registerRoutes(r *gin.Engine, repo prod.Repository, logger *slog.Logger, secret []byte) {
	r.GET("/products", listOnlyHandler(repo, logger))
	r.GET("/products/search", searchHandler(repo, logger))
	r.GET("/products/:id", getProductHandler(repo, logger))

	admin := r.Group("/products", auth.Middleware(secret), auth.RequireRole(auth.RoleAdmin))
	admin.POST("", createProductHandler(repo, logger))
	admin.PUT("/:id", updateProductHandler(repo, logger))
	admin.DELETE("/:id", deleteProductHandler(repo, logger))
}

func queryFrom(c *gin.Context) prod.Query {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return prod.Query{
		RestaurantID: c.Query("restaurant_id"),
		Limit:        limit,
		Offset:       offset,
	}.Normalize()
}

// listOnlyHandler godoc
// @Summary      List menu items
// @Description  Pagination only; use /products/search for text search
// @Tags         products
// @Produce      json
// @Param        restaurant_id  query  string  false  "restaurant filter"
// @Param        limit          query  int     false  "page size"
// @Param        offset         query  int     false  "offset"
// @Success      200  {object}  prod.ListResponse
// @Router       /products [get]
func listOnlyHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := queryFrom(c)
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			logger.Error("failed to list products", "error", err)
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "list error"})
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{RestaurantID: q.RestaurantID, Limit: q.Limit, Offset: q.Offset, Items: items})
	}
}

// searchHandler godoc
// @Summary      Search menu items
// @Tags         products
// @Produce      json
// @Param        q              query  string  true   "text, at least 2 characters"
// @Param        restaurant_id  query  string  false  "restaurant filter"
// @Param        limit          query  int     false  "page size"
// @Param        offset         query  int     false  "offset"
// @Success      200  {object}  prod.ListResponse
// @Failure      400  {object}  prod.HTTPError
// @Router       /products/search [get]
func searchHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		text := strings.TrimSpace(c.Query("q"))
		if len([]rune(text)) < 2 {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "q must have at least 2 characters"})
			return
		}
		q := queryFrom(c)
		q.Q = text
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			logger.Error("failed to search products", "error", err, "q", text)
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "search error"})
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{Q: text, RestaurantID: q.RestaurantID, Limit: q.Limit, Offset: q.Offset, Items: items})
	}
}

// getProductHandler godoc
// @Summary  Get menu item
// @Tags     products
// @Produce  json
// @Param    id   path      string  true  "menu item id"
// @Success  200  {object}  prod.Product
// @Failure  404  {object}  prod.HTTPError
// @Router   /products/{id} [get]
func getProductHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, prod.ErrNotFound) {
			c.JSON(http.StatusNotFound, prod.HTTPError{Error: "not found"})
			return
		}
		if err != nil {
			logger.Error("failed to get product", "error", err, "id", c.Param("id"))
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "get error"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// createProductHandler godoc
// @Summary   Create menu item
// @Tags      products
// @Accept    json
// @Produce   json
// @Param     body  body      prod.CreateProductRequest  true  "menu item"
// @Success   201   {object}  prod.Product
// @Failure   400   {object}  prod.HTTPError
// @Security  BearerAuth
// @Router    /products [post]
func createProductHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in prod.CreateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "invalid json"})
			return
		}
		if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.RestaurantID) == "" {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "name and restaurant_id are required"})
			return
		}
		price, err := money.Parse(in.Price)
		if err != nil {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "invalid price"})
			return
		}

		p := &prod.Product{
			ID:           uuid.NewString(),
			RestaurantID: strings.TrimSpace(in.RestaurantID),
			Name:         strings.TrimSpace(in.Name),
			Description:  in.Description,
			Price:        money.Format(price),
			Image:        in.Image,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			logger.Error("failed to create product", "error", err)
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "create error"})
			return
		}
		logger.Info("product created", "id", p.ID, "restaurant_id", p.RestaurantID)
		c.JSON(http.StatusCreated, p)
	}
}

// updateProductHandler godoc
// @Summary      Update menu item
// @Description  Partial update; empty fields are left untouched. Placed orders keep their snapshot.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "menu item id"
// @Param        body  body      prod.UpdateProductRequest  true  "fields"
// @Success      200   {object}  prod.Product
// @Failure      400   {object}  prod.HTTPError
// @Failure      404   {object}  prod.HTTPError
// @Security     BearerAuth
// @Router       /products/{id} [put]
func updateProductHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in prod.UpdateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "invalid json"})
			return
		}
		p := &prod.Product{
			ID:          c.Param("id"),
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			Image:       in.Image,
		}
		if in.Price != "" {
			price, err := money.Parse(in.Price)
			if err != nil {
				c.JSON(http.StatusBadRequest, prod.HTTPError{Error: "invalid price"})
				return
			}
			p.Price = money.Format(price)
		}

		err := repo.Update(c.Request.Context(), p)
		if errors.Is(err, prod.ErrNotFound) {
			c.JSON(http.StatusNotFound, prod.HTTPError{Error: "not found"})
			return
		}
		if err != nil {
			logger.Error("failed to update product", "error", err, "id", p.ID)
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "update error"})
			return
		}
		updated, err := repo.GetByID(c.Request.Context(), p.ID)
		if err != nil {
			logger.Error("failed to reload product", "error", err, "id", p.ID)
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "get error"})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// deleteProductHandler godoc
// @Summary   Delete menu item
// @Tags      products
// @Param     id  path  string  true  "menu item id"
// @Success   204
// @Failure   404  {object}  prod.HTTPError
// @Security  BearerAuth
// @Router    /products/{id} [delete]
func deleteProductHandler(repo prod.Repository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			logger.Error("failed to delete product", "error", err, "id", c.Param("id"))
			c.JSON(http.StatusInternalServerError, prod.HTTPError{Error: "delete error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, prod.HTTPError{Error: "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
