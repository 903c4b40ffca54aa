package domain

import "time"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleClient UserRole = "client"
)

type CommunicationType string

const (
	CommTypeInviteEmail     CommunicationType = "invite_email"
	CommTypeReminder        CommunicationType = "reminder"
	CommTypeResultAlert     CommunicationType = "result_alert"
	CommTypeChat            CommunicationType = "chat"
	CommTypeMonthlyReport   CommunicationType = "monthly_report"
	CommTypeContentApproval CommunicationType = "content_approval"
	CommTypeTaskComplete    CommunicationType = "task_complete"
	CommTypeMeeting         CommunicationType = "meeting"
	CommTypeCall            CommunicationType = "call"
	CommTypeEmailGeneral    CommunicationType = "email_general"
	CommTypeSMS             CommunicationType = "sms"
	CommTypeEmailHighLevel  CommunicationType = "email_highlevel"
)

type CommunicationStatus string

const (
	CommStatusSent      CommunicationStatus = "sent"
	CommStatusDelivered CommunicationStatus = "delivered"
	CommStatusOpened    CommunicationStatus = "opened"
	CommStatusClicked   CommunicationStatus = "clicked"
	CommStatusFailed    CommunicationStatus = "failed"
	CommStatusBounced   CommunicationStatus = "bounced"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type CommunicationSource string

const (
	SourceDatabase    CommunicationSource = "database"
	SourceExternalCRM CommunicationSource = "external-crm"
)

type Client struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ContactEmail       string    `json:"contact_email"`
	HighLevelContactID *string   `json:"highlevel_contact_id,omitempty"`
	StripeCustomerID   *string   `json:"stripe_customer_id,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type User struct {
	ID           string    `json:"id"`
	ClientID     *string   `json:"client_id,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type CommunicationRecord struct {
	ID             string              `json:"id"`
	ClientID       string              `json:"client_id"`
	Type           CommunicationType   `json:"type"`
	Title          string              `json:"title"`
	Subject        *string             `json:"subject,omitempty"`
	Body           *string             `json:"body,omitempty"`
	Status         *string             `json:"status,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
	HighlightType  *string             `json:"highlight_type,omitempty"`
	RecipientEmail *string             `json:"recipient_email,omitempty"`
	OpenedAt       *time.Time          `json:"opened_at,omitempty"`
	ClickedAt      *time.Time          `json:"clicked_at,omitempty"`
	SentAt         *time.Time          `json:"sent_at,omitempty"`
	CreatedBy      string              `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
}

// CrmMessage is an external CRM message normalized toward the shared
// communication shape. It is never persisted.
type CrmMessage struct {
	ExternalID    string           `json:"external_id"`
	Type          string           `json:"type"`
	Title         string           `json:"title"`
	Subject       *string          `json:"subject,omitempty"`
	Body          *string          `json:"body,omitempty"`
	Status        *string          `json:"status,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	HighlightType *string          `json:"highlight_type,omitempty"`
	SentAt        *time.Time       `json:"sent_at,omitempty"`
	Direction     MessageDirection `json:"direction"`
}

// MergedCommunication is the request-scoped union consumed by the
// timeline endpoint. Source discriminates the two id namespaces.
type MergedCommunication struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id"`
	Type          string              `json:"type"`
	Title         string              `json:"title"`
	Subject       *string             `json:"subject,omitempty"`
	Body          *string             `json:"body,omitempty"`
	Status        *string             `json:"status,omitempty"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
	HighlightType *string             `json:"highlight_type,omitempty"`
	SentAt        *time.Time          `json:"sent_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Source        CommunicationSource `json:"source"`
	Direction     *MessageDirection   `json:"direction,omitempty"`
}

// EffectiveTimestamp is the sort key of the merged timeline: the send
// time when known, otherwise the creation time.
func (m MergedCommunication) EffectiveTimestamp() time.Time {
	if m.SentAt != nil {
		return *m.SentAt
	}
	return m.CreatedAt
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Interval    string    `json:"interval"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Bundle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ProductIDs  []string  `json:"product_ids"`
	PriceCents  int64     `json:"price_cents"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Subscription struct {
	ID                   string     `json:"id"`
	ClientID             string     `json:"client_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	StripePriceID        string     `json:"stripe_price_id"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type EmailTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DealStage string

const (
	DealStageLead        DealStage = "lead"
	DealStageQualified   DealStage = "qualified"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageWon         DealStage = "won"
	DealStageLost        DealStage = "lost"
)

type Deal struct {
	ID            string     `json:"id"`
	ClientID      *string    `json:"client_id,omitempty"`
	Name          string     `json:"name"`
	ContactEmail  string     `json:"contact_email"`
	Stage         DealStage  `json:"stage"`
	CallScore     int        `json:"call_score"`
	Engagement    int        `json:"engagement"`
	BudgetFit     int        `json:"budget_fit"`
	Recency       int        `json:"recency"`
	Score         float64    `json:"score"`
	PredictedTier string     `json:"predicted_tier"`
	SnoozedUntil  *time.Time `json:"snoozed_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

type Alert struct {
	ID        string         `json:"id"`
	Severity  AlertSeverity  `json:"severity"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Source    string         `json:"source"`
	ClientID  *string        `json:"client_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
