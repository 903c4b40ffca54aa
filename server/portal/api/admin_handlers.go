package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
	"pyrus_portal/server/portal/service"
)

func (h *Handler) listProducts(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	items, err := h.catalog.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents" binding:"required"`
		Interval    string `json:"interval"`
		Active      *bool  `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if req.Interval == "" {
		req.Interval = "month"
	}
	created, err := h.catalog.CreateProduct(c.Request.Context(), domain.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Interval:    req.Interval,
		Active:      active,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req domain.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	req.ID = c.Param("id")
	if err := h.catalog.UpdateProduct(c.Request.Context(), req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) listBundles(c *gin.Context) {
	items, err := h.catalog.ListBundles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createBundle(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		ProductIDs  []string `json:"product_ids" binding:"required"`
		PriceCents  int64    `json:"price_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	created, err := h.catalog.CreateBundle(c.Request.Context(), domain.Bundle{
		Name:        req.Name,
		Description: req.Description,
		ProductIDs:  req.ProductIDs,
		PriceCents:  req.PriceCents,
		Active:      true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listTemplates(c *gin.Context) {
	items, err := h.templates.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createTemplate(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Subject string `json:"subject" binding:"required"`
		Body    string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	created, err := h.templates.Create(c.Request.Context(), domain.EmailTemplate{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateTemplate(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Subject string `json:"subject" binding:"required"`
		Body    string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	err := h.templates.Update(c.Request.Context(), domain.EmailTemplate{
		ID:      c.Param("id"),
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("template not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) deleteTemplate(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("template not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) listSubscriptions(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	items, err := h.subs.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createSubscription(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		StripeSubscriptionID string     `json:"stripe_subscription_id" binding:"required"`
		StripePriceID        string     `json:"stripe_price_id" binding:"required"`
		Status               string     `json:"status"`
		CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}
	created, err := h.subs.Create(c.Request.Context(), domain.Subscription{
		ClientID:             clientID,
		StripeSubscriptionID: req.StripeSubscriptionID,
		StripePriceID:        req.StripePriceID,
		Status:               req.Status,
		CurrentPeriodEnd:     req.CurrentPeriodEnd,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateSubscriptionStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if err := h.subs.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("subscription not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) presignReportUpload(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		Month    string `json:"month" binding:"required"`
		Filename string `json:"filename" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	uploadURL, objectKey, err := h.reports.PresignUpload(c.Request.Context(), clientID, req.Month, req.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewUploadResponse(uploadURL, objectKey))
}

func (h *Handler) registerReport(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		Month     string `json:"month" binding:"required"`
		Title     string `json:"title" binding:"required"`
		ObjectKey string `json:"object_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	rec, err := h.reports.Register(c.Request.Context(), clientID, req.Month, req.Title, req.ObjectKey, actorID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) presignReportDownload(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	objectKey := strings.TrimSpace(c.Query("object_key"))
	if !strings.HasPrefix(objectKey, "reports/"+clientID+"/") {
		c.JSON(http.StatusBadRequest, NewErrorResponse("object_key does not belong to this client"))
		return
	}
	downloadURL, err := h.reports.PresignDownload(c.Request.Context(), objectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewURLResponse(downloadURL))
}

func (h *Handler) listDeals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.pipeline.ListActiveDeals(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createDeal(c *gin.Context) {
	var req struct {
		ClientID     *string `json:"client_id"`
		Name         string  `json:"name" binding:"required"`
		ContactEmail string  `json:"contact_email"`
		Stage        string  `json:"stage"`
		CallScore    int     `json:"call_score"`
		Engagement   int     `json:"engagement"`
		BudgetFit    int     `json:"budget_fit"`
		Recency      int     `json:"recency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	created, err := h.pipeline.CreateDeal(c.Request.Context(), domain.Deal{
		ClientID:     req.ClientID,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Stage:        domain.DealStage(req.Stage),
		CallScore:    req.CallScore,
		Engagement:   req.Engagement,
		BudgetFit:    req.BudgetFit,
		Recency:      req.Recency,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getDeal(c *gin.Context) {
	deal, err := h.pipeline.GetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrDealNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("deal not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *Handler) rescoreDeal(c *gin.Context) {
	var req struct {
		Stage      string `json:"stage"`
		CallScore  int    `json:"call_score"`
		Engagement int    `json:"engagement"`
		BudgetFit  int    `json:"budget_fit"`
		Recency    int    `json:"recency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	deal, err := h.pipeline.Rescore(c.Request.Context(), c.Param("id"), domain.DealStage(req.Stage), service.DealFactors{
		CallScore:  req.CallScore,
		Engagement: req.Engagement,
		BudgetFit:  req.BudgetFit,
		Recency:    req.Recency,
	})
	if err != nil {
		if errors.Is(err, service.ErrDealNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("deal not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *Handler) snoozeDeal(c *gin.Context) {
	var req struct {
		Until time.Time `json:"until" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if err := h.pipeline.Snooze(c.Request.Context(), c.Param("id"), req.Until); err != nil {
		if errors.Is(err, service.ErrDealNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("deal not found"))
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) unsnoozeDeal(c *gin.Context) {
	if err := h.pipeline.Unsnooze(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrDealNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("deal not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) listAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	items, err := h.alerts.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createUser(c *gin.Context) {
	var req struct {
		ClientID *string `json:"client_id"`
		Email    string  `json:"email" binding:"required"`
		Name     string  `json:"name" binding:"required"`
		Role     string  `json:"role"`
		Password string  `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	id, err := h.users.CreateUser(c.Request.Context(), domain.User{
		ClientID: req.ClientID,
		Email:    req.Email,
		Name:     req.Name,
		Role:     domain.UserRole(req.Role),
	}, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, NewIDResponse(id))
}
