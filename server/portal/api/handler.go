package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	commonauth "pyrus_portal/server/common/auth"
	"pyrus_portal/server/common/middleware"
	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
	"pyrus_portal/server/portal/service"
)

type Handler struct {
	comms     *service.CommunicationService
	clients   *service.ClientService
	users     *service.UserService
	emails    *service.EmailService
	pipeline  *service.PipelineService
	reports   *service.ReportService
	catalog   *repository.CatalogRepository
	templates *repository.TemplateRepository
	subs      *repository.SubscriptionRepository
	alerts    *repository.AlertRepository
	auth      *commonauth.Service
}

type Deps struct {
	Communications *service.CommunicationService
	Clients        *service.ClientService
	Users          *service.UserService
	Emails         *service.EmailService
	Pipeline       *service.PipelineService
	Reports        *service.ReportService
	Catalog        *repository.CatalogRepository
	Templates      *repository.TemplateRepository
	Subscriptions  *repository.SubscriptionRepository
	Alerts         *repository.AlertRepository
}

func NewHandler(deps Deps, jwtSecret string, jwtTTLMinutes int) *Handler {
	return &Handler{
		comms:     deps.Communications,
		clients:   deps.Clients,
		users:     deps.Users,
		emails:    deps.Emails,
		pipeline:  deps.Pipeline,
		reports:   deps.Reports,
		catalog:   deps.Catalog,
		templates: deps.Templates,
		subs:      deps.Subscriptions,
		alerts:    deps.Alerts,
		auth:      commonauth.NewService(jwtSecret, jwtTTLMinutes),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, NewHealthResponse("ok")) })
	r.POST("/api/v1/auth/login", h.login)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(h.auth))

	adminOnly := middleware.RequireRoles(string(domain.UserRoleAdmin))
	clientScoped := middleware.ClientScope("id")
	{
		api.GET("/clients", adminOnly, h.listClients)
		api.POST("/clients", adminOnly, h.createClient)
		api.GET("/clients/:id", clientScoped, h.getClient)
		api.PUT("/clients/:id", adminOnly, h.updateClient)

		api.GET("/clients/:id/communications", clientScoped, h.listCommunications)
		api.POST("/clients/:id/communications", adminOnly, h.recordCommunication)
		api.PUT("/communications/:id/status", adminOnly, h.updateCommunicationStatus)
		api.POST("/clients/:id/emails", adminOnly, h.sendClientEmail)

		api.GET("/clients/:id/subscriptions", clientScoped, h.listSubscriptions)
		api.POST("/clients/:id/subscriptions", adminOnly, h.createSubscription)
		api.PUT("/subscriptions/:id/status", adminOnly, h.updateSubscriptionStatus)

		api.POST("/clients/:id/reports/upload-url", adminOnly, h.presignReportUpload)
		api.POST("/clients/:id/reports", adminOnly, h.registerReport)
		api.GET("/clients/:id/reports/download", clientScoped, h.presignReportDownload)

		api.GET("/products", h.listProducts)
		api.POST("/products", adminOnly, h.createProduct)
		api.PUT("/products/:id", adminOnly, h.updateProduct)
		api.GET("/bundles", h.listBundles)
		api.POST("/bundles", adminOnly, h.createBundle)

		api.GET("/templates", adminOnly, h.listTemplates)
		api.POST("/templates", adminOnly, h.createTemplate)
		api.PUT("/templates/:id", adminOnly, h.updateTemplate)
		api.DELETE("/templates/:id", adminOnly, h.deleteTemplate)

		api.GET("/deals", adminOnly, h.listDeals)
		api.POST("/deals", adminOnly, h.createDeal)
		api.GET("/deals/:id", adminOnly, h.getDeal)
		api.PUT("/deals/:id/score", adminOnly, h.rescoreDeal)
		api.POST("/deals/:id/snooze", adminOnly, h.snoozeDeal)
		api.POST("/deals/:id/unsnooze", adminOnly, h.unsnoozeDeal)

		api.GET("/alerts", adminOnly, h.listAlerts)
		api.POST("/users", adminOnly, h.createUser)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(ErrInvalidCredentials))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	clientID := ""
	if user.ClientID != nil {
		clientID = *user.ClientID
	}
	token, err := h.auth.GenerateToken(user.ID, clientID, string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewTokenResponse(token, user.ID, clientID, string(user.Role)))
}

// listCommunications serves the merged communications timeline.
func (h *Handler) listCommunications(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}

	var typeFilter *string
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		typeFilter = &v
	}
	includeExternal := true
	if v := strings.TrimSpace(c.Query("include_external")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("include_external must be a boolean"))
			return
		}
		includeExternal = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.comms.ClientTimeline(c.Request.Context(), service.TimelineQuery{
		ClientID:        clientID,
		Type:            typeFilter,
		IncludeExternal: includeExternal,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(ErrClientNotFound))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) listClients(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.clients.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewListResponse(items))
}

func (h *Handler) createClient(c *gin.Context) {
	var req struct {
		Name             string  `json:"name" binding:"required"`
		ContactEmail     string  `json:"contact_email"`
		StripeCustomerID *string `json:"stripe_customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	created, err := h.clients.Create(c.Request.Context(), domain.Client{
		Name:             req.Name,
		ContactEmail:     req.ContactEmail,
		StripeCustomerID: req.StripeCustomerID,
	}, actorID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getClient(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	client, err := h.clients.Get(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(ErrClientNotFound))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) updateClient(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		Name             string  `json:"name" binding:"required"`
		ContactEmail     string  `json:"contact_email"`
		StripeCustomerID *string `json:"stripe_customer_id"`
		Status           string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	err := h.clients.Update(c.Request.Context(), domain.Client{
		ID:               clientID,
		Name:             req.Name,
		ContactEmail:     req.ContactEmail,
		StripeCustomerID: req.StripeCustomerID,
		Status:           req.Status,
	})
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(ErrClientNotFound))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) sendClientEmail(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		TemplateName string         `json:"template_name" binding:"required"`
		Recipient    string         `json:"recipient"`
		CommType     string         `json:"comm_type"`
		Data         map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	client, err := h.clients.Get(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(ErrClientNotFound))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = client.ContactEmail
	}
	commType := domain.CommunicationType(req.CommType)
	if commType == "" {
		commType = domain.CommTypeEmailGeneral
	}
	rec, err := h.emails.SendTemplate(c.Request.Context(), service.TemplateEmail{
		ClientID:     clientID,
		Recipient:    recipient,
		TemplateName: req.TemplateName,
		Data:         req.Data,
		CommType:     commType,
		CreatedBy:    actorID(c),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// recordCommunication logs a first-party touchpoint that has no
// automated flow of its own (meetings, calls, content approvals, task
// completions).
func (h *Handler) recordCommunication(c *gin.Context) {
	clientID, ok := validClientID(c)
	if !ok {
		return
	}
	var req struct {
		Type     string         `json:"type" binding:"required"`
		Title    string         `json:"title" binding:"required"`
		Subject  *string        `json:"subject"`
		Body     *string        `json:"body"`
		Metadata map[string]any `json:"metadata"`
		SentAt   *time.Time     `json:"sent_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	sentAt := req.SentAt
	if sentAt == nil {
		now := time.Now()
		sentAt = &now
	}
	status := string(domain.CommStatusDelivered)
	rec, err := h.comms.Record(c.Request.Context(), domain.CommunicationRecord{
		ClientID:  clientID,
		Type:      domain.CommunicationType(req.Type),
		Title:     req.Title,
		Subject:   req.Subject,
		Body:      req.Body,
		Status:    &status,
		Metadata:  req.Metadata,
		SentAt:    sentAt,
		CreatedBy: actorID(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) updateCommunicationStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if err := h.comms.UpdateStatus(c.Request.Context(), c.Param("id"), domain.CommunicationStatus(req.Status)); err != nil {
		if errors.Is(err, service.ErrUnknownStatus) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

// validClientID enforces the UUID-shape contract before any storage
// access.
func validClientID(c *gin.Context) (string, bool) {
	clientID := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(clientID); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(ErrInvalidClientID))
		return "", false
	}
	return clientID, true
}

func actorID(c *gin.Context) string {
	if v, ok := c.Get("auth_user_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
