package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/categories"
	"github.com/Zack-y11/e-commerce/internal/products"
	"github.com/Zack-y11/e-commerce/pkg/ctxmanage"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateCategory(c *gin.Context) {
	var nc categories.NewCategory
	if !bindJSON(c, &nc) {
		return
	}
	cat, err := h.Categories.InsertCategory(c.Request.Context(), nc)
	if err != nil {
		abortWithError(c, "error in creating category", err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	var nc categories.NewCategory
	if !bindJSON(c, &nc) {
		return
	}
	cat, err := h.Categories.UpdateCategory(c.Request.Context(), c.Param("id"), nc)
	if err != nil {
		abortWithError(c, "error in updating category", err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.Categories.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, "error in deleting category", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetCategory(c *gin.Context) {
	cat, err := h.Categories.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "error in fetching category", err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) ListCategories(c *gin.Context) {
	list, err := h.Categories.ListCategories(c.Request.Context())
	if err != nil {
		abortWithError(c, "error in listing categories", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	// Check if the size of the request body exceeds 5 KB
	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId), slog.Int64("size", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var np products.NewProduct
	if !bindJSON(c, &np) {
		return
	}

	p, err := h.Products.InsertProduct(c.Request.Context(), np)
	if err != nil {
		abortWithError(c, "error in inserting the product", err)
		return
	}

	slog.Info("product created", slog.String(logkey.TraceID, traceId), slog.String(logkey.ProductID, p.ID))
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	var np products.NewProduct
	if !bindJSON(c, &np) {
		return
	}
	p, err := h.Products.UpdateProduct(c.Request.Context(), c.Param("sku"), np)
	if err != nil {
		abortWithError(c, "error in updating the product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.Products.DeleteProduct(c.Request.Context(), c.Param("sku")); err != nil {
		abortWithError(c, "error in deleting the product", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Products.GetProductBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		abortWithError(c, "error in retrieving product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.Products.ListProducts(c.Request.Context())
	if err != nil {
		abortWithError(c, "error in listing products", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListProductsByCategory(c *gin.Context) {
	list, err := h.Products.ListProductsByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		abortWithError(c, "error in listing products by category", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
