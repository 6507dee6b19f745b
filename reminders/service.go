// CLAUDE:SUMMARY Action-based message API over the store, connectivity registration, and the cron purge job.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hazyhaar/adfriend/connectivity"
)

// ServiceName is the connectivity service the engine calls.
const ServiceName = "adfriend_reminders"

// handlerTimeout bounds one message API call on the local route.
const handlerTimeout = 10 * time.Second

// DefaultPurgeSpec runs the expired one-time purge once a day.
const DefaultPurgeSpec = "@daily"

// Actions understood by Handle.
const (
	ActionGetToday = "getTodayReminders"
	ActionGetAll   = "getAllReminders"
	ActionSave     = "saveReminder"
	ActionDelete   = "deleteReminder"
	ActionPause    = "pauseReminder"
	ActionLog      = "log"
)

// Message is a request to the service.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope of every answer.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type idPayload struct {
	ID string `json:"id"`
}

type logPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Service answers message API requests from the store.
type Service struct {
	store     *Store
	logger    *slog.Logger
	purgeSpec string

	mu   sync.Mutex
	cron *cron.Cron
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithPurgeSpec sets the cron schedule of the expired reminder purge.
// An empty spec disables the job.
func WithPurgeSpec(spec string) ServiceOption {
	return func(s *Service) { s.purgeSpec = spec }
}

// NewService creates a Service over store.
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		logger:    slog.Default(),
		purgeSpec: DefaultPurgeSpec,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// RegisterConnectivity exposes Handle as the local ServiceName handler,
// wrapped with call logging, panic recovery and a per-call timeout.
func (s *Service) RegisterConnectivity(router *connectivity.Router) {
	mw := connectivity.Chain(
		connectivity.Logging(s.logger, ServiceName),
		connectivity.Recovery(s.logger),
		connectivity.Timeout(handlerTimeout),
	)
	router.RegisterLocal(ServiceName, mw(s.Handle))
}

// Handle decodes a Message and returns the JSON Response. Failures are
// reported inside the envelope; the returned error is reserved for
// malformed requests.
func (s *Service) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("reminders: decode message: %w", err)
	}
	s.logger.Debug("reminders: action", "action", msg.Action)

	data, err := s.dispatch(ctx, msg)
	resp := Response{Success: err == nil, Data: data}
	if err != nil {
		resp.Data = nil
		resp.Error = err.Error()
		var unknown unknownActionError
		if !errors.As(err, &unknown) {
			s.logger.Error("reminders: action failed", "action", msg.Action, "error", err)
		}
	}
	return json.Marshal(resp)
}

func (s *Service) dispatch(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionGetToday:
		return s.store.Today(ctx)

	case ActionGetAll:
		return s.store.All(ctx)

	case ActionSave:
		var in Input
		if err := decodePayload(msg.Payload, &in); err != nil {
			return nil, err
		}
		return s.store.Save(ctx, in)

	case ActionDelete:
		var p idPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		return nil, s.store.Delete(ctx, p.ID)

	case ActionPause:
		var p idPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		_, err := s.store.TogglePause(ctx, p.ID)
		return nil, err

	case ActionLog:
		var p logPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		s.logger.Log(ctx, parseLevel(p.Level), "reminders: client log: "+p.Message, "data", p.Data)
		return nil, nil

	default:
		s.logger.Warn("reminders: unknown action", "action", msg.Action)
		return nil, unknownActionError(msg.Action)
	}
}

// unknownActionError renders as "Unknown action: X", the wording clients match on.
type unknownActionError string

func (e unknownActionError) Error() string { return "Unknown action: " + string(e) }

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Start schedules the expired reminder purge. It is a no-op when the purge
// spec is empty or the job is already running.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purgeSpec == "" || s.cron != nil {
		return nil
	}
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := c.AddFunc(s.purgeSpec, s.purge); err != nil {
		return fmt.Errorf("reminders: purge schedule %q: %w", s.purgeSpec, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("reminders: purge scheduled", "spec", s.purgeSpec)
	return nil
}

// Stop halts the purge job and waits for a running purge to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) purge() {
	n, err := s.store.PurgeExpired(context.Background())
	if err != nil {
		s.logger.Error("reminders: purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("reminders: purged expired one-time reminders", "count", n)
	}
}
