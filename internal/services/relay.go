package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"kyro-backend/internal/models"
	"kyro-backend/internal/session"
)

// Publisher fans session events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

// Recorder accepts turn metadata. Record must not block.
type Recorder interface {
	Record(turn models.Turn)
}

type RelayConfig struct {
	DefaultSessionID string
	MaxAttempts      int
	RetryBackoff     time.Duration
	MaxMessageChars  int
}

// Reply is the outcome of one successful chat turn.
type Reply struct {
	Text       string
	Status     string
	Source     string
	NewSession bool
	Attempts   int
}

// Relay answers chat messages from canned texts or through the session's remote
// conversation.
type Relay struct {
	store     session.Store
	cfg       RelayConfig
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithPublisher(p Publisher) RelayOption {
	return func(r *Relay) { r.publisher = p }
}

func WithRecorder(rec Recorder) RelayOption {
	return func(r *Relay) { r.recorder = rec }
}

func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store session.Store, cfg RelayConfig, opts ...RelayOption) *Relay {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.DefaultSessionID == "" {
		cfg.DefaultSessionID = "default"
	}

	r := &Relay{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Chat(ctx context.Context, message, sessionID string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Message: NoMessageText}
	}
	if r.cfg.MaxMessageChars > 0 && utf8.RuneCountInString(message) > r.cfg.MaxMessageChars {
		return nil, &ValidationError{Message: fmt.Sprintf("Message is too long (max %d characters).", r.cfg.MaxMessageChars)}
	}
	if sessionID == "" {
		sessionID = r.cfg.DefaultSessionID
	}

	started := r.now()

	reply, err := r.cannedReply(ctx, message, sessionID)
	if err != nil {
		return nil, err
	}
	if reply != nil {
		r.finish(ctx, sessionID, message, reply, started)
		return reply, nil
	}

	sess, err := r.acquire(ctx, sessionID, started)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	// The persona rides along with the first turn only.
	priming := sess.Fresh()
	input := message
	if priming {
		input = withPersona(message)
	}

	text, attempts, err := r.send(ctx, sess.Conversation, input)
	if err != nil {
		if priming {
			// No turn ever landed on this context; drop it so the next message starts over.
			// A replacement created after a clear is left alone.
			if delErr := r.store.Discard(ctx, sess); delErr != nil {
				log.Printf("[relay] session %s: failed to discard unprimed session: %v", logKey(sessionID), delErr)
			}
		}
		log.Printf("[relay] session %s: model failed after %d attempt(s): %v", logKey(sessionID), attempts, err)
		r.record(sessionID, message, &Reply{Status: models.StatusError, Source: models.TurnSourceModel, NewSession: priming, Attempts: attempts}, started)
		return nil, &UpstreamError{Attempts: attempts, Err: err}
	}

	if err := r.store.Save(ctx, sess); err != nil {
		log.Printf("[relay] session %s: failed to save history: %v", logKey(sessionID), err)
	}

	if priming {
		text = timeOfDayGreeting(r.now()) + " " + text
	}

	reply = &Reply{
		Text:       text,
		Status:     models.StatusSuccess,
		Source:     models.TurnSourceModel,
		NewSession: priming,
		Attempts:   attempts,
	}
	r.finish(ctx, sessionID, message, reply, started)
	return reply, nil
}

// acquire returns the live session for sessionID with its turn lock held. A session
// discarded while this turn waited for the lock is skipped for its successor.
func (r *Relay) acquire(ctx context.Context, sessionID string, at time.Time) (*session.Session, error) {
	for round := 0; round < 3; round++ {
		sess, created, err := r.store.Create(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to open session: %w", err)
		}
		if created {
			log.Printf("[relay] session %s started", logKey(sessionID))
			r.publish(ctx, sessionID, models.EventSessionStarted, models.SessionEvent{SessionID: sessionID, At: at.UTC()})
		}

		sess.Lock()
		live, err := r.store.Live(ctx, sess)
		if err != nil {
			sess.Unlock()
			return nil, fmt.Errorf("failed to check session: %w", err)
		}
		if live {
			return sess, nil
		}
		sess.Unlock()
	}

	return nil, fmt.Errorf("session %s kept being replaced while opening", logKey(sessionID))
}

// cannedReply returns nil when the message must go to the model.
func (r *Relay) cannedReply(ctx context.Context, message, sessionID string) (*Reply, error) {
	normalized := strings.ToLower(strings.TrimSpace(message))

	if isGreeting(normalized) {
		exists, err := r.store.Exists(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session: %w", err)
		}

		text := IntroReply
		if !exists {
			text = timeOfDayGreeting(r.now()) + " " + IntroReply
		}
		return &Reply{Text: text, Status: models.StatusSuccess, Source: models.TurnSourceCanned}, nil
	}

	if isHelpRequest(normalized) {
		return &Reply{Text: HelpReply, Status: models.StatusSuccess, Source: models.TurnSourceCanned}, nil
	}

	return nil, nil
}

// send makes up to MaxAttempts calls, sleeping attempt×RetryBackoff between them.
func (r *Relay) send(ctx context.Context, conv session.Conversation, input string) (string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		text, err := conv.Send(ctx, input)
		if err == nil {
			return text, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == r.cfg.MaxAttempts {
			return "", attempt, lastErr
		}

		log.Printf("[relay] attempt %d/%d failed, retrying: %v", attempt, r.cfg.MaxAttempts, err)

		select {
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		case <-time.After(time.Duration(attempt) * r.cfg.RetryBackoff):
		}
	}

	return "", r.cfg.MaxAttempts, lastErr
}

// Clear drops the session for sessionID. Unknown ids succeed.
func (r *Relay) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &ValidationError{Message: NoSessionIDText}
	}

	if err := r.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	r.publish(ctx, sessionID, models.EventSessionCleared, models.SessionEvent{SessionID: sessionID, At: r.now().UTC()})
	return nil
}

func (r *Relay) finish(ctx context.Context, sessionID, message string, reply *Reply, started time.Time) {
	r.publish(ctx, sessionID, models.EventReply, models.ReplyEvent{
		SessionID: sessionID,
		Source:    reply.Source,
		Status:    reply.Status,
		Response:  reply.Text,
		At:        r.now().UTC(),
	})
	r.record(sessionID, message, reply, started)
}

func (r *Relay) publish(ctx context.Context, sessionID, eventType string, payload interface{}) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(ctx, sessionID, models.WSMessage{Type: eventType, Payload: payload})
}

func (r *Relay) record(sessionID, message string, reply *Reply, started time.Time) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(models.Turn{
		SessionKey:   session.HashKey(sessionID),
		Source:       reply.Source,
		Status:       reply.Status,
		NewSession:   reply.NewSession,
		Attempts:     reply.Attempts,
		LatencyMs:    r.now().Sub(started).Milliseconds(),
		MessageChars: utf8.RuneCountInString(message),
		ReplyChars:   utf8.RuneCountInString(reply.Text),
		CreatedAt:    started.UTC(),
	})
}

// logKey keeps raw client ids out of logs.
func logKey(sessionID string) string {
	return session.HashKey(sessionID)[:12]
}
