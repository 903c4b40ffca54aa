package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pyrus_portal/server/common/log"
	"pyrus_portal/server/portal/domain"
)

const (
	defaultAlertTimeout = 5 * time.Second
	defaultDedupeWindow = 5 * time.Minute
)

type alertStore interface {
	Create(ctx context.Context, alert domain.Alert) (domain.Alert, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// AlertService is the structured alerting sink. Report is
// fire-and-forget: dispatch runs detached with its own deadline and
// error boundary, so a failing sink can never fail or block the
// request that raised the alert.
type AlertService struct {
	store        alertStore
	redis        *redis.Client
	events       eventPublisher
	timeout      time.Duration
	dedupeWindow time.Duration
	wg           sync.WaitGroup
}

func NewAlertService(store alertStore, redisClient *redis.Client, events eventPublisher) *AlertService {
	return &AlertService{
		store:        store,
		redis:        redisClient,
		events:       events,
		timeout:      defaultAlertTimeout,
		dedupeWindow: defaultDedupeWindow,
	}
}

func (s *AlertService) Report(alert domain.Alert) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(alert)
	}()
}

// Flush waits for in-flight dispatches; used on shutdown and in tests.
func (s *AlertService) Flush() {
	s.wg.Wait()
}

func (s *AlertService) dispatch(alert domain.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if alert.Severity == "" {
		alert.Severity = domain.AlertSeverityError
	}

	if s.redis != nil {
		fresh, err := s.redis.SetNX(ctx, dedupeKey(alert), 1, s.dedupeWindow).Result()
		if err != nil {
			log.Warnf("alert dedupe check failed category=%s: %v", alert.Category, err)
		} else if !fresh {
			log.Debugf("alert suppressed as duplicate category=%s message=%s", alert.Category, alert.Message)
			return
		}
	}

	stored, err := s.store.Create(ctx, alert)
	if err != nil {
		log.Errorf("persist alert category=%s: %v", alert.Category, err)
		return
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, "alert."+stored.Category, stored); err != nil {
			log.Warnf("publish alert event category=%s: %v", stored.Category, err)
		}
	}
}

func dedupeKey(alert domain.Alert) string {
	clientID := "-"
	if alert.ClientID != nil {
		clientID = *alert.ClientID
	}
	sum := sha1.Sum([]byte(alert.Message))
	return "alerts:dedupe:" + alert.Category + ":" + clientID + ":" + hex.EncodeToString(sum[:])
}
