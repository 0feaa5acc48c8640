// Package bookchat wires the streaming chat session client for the book
// assistant backend: configuration, local session store, backend API
// client, saved-books state, and the session client itself.
package bookchat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookchat-dev/bookchat/pkg/api"
	"github.com/bookchat-dev/bookchat/pkg/books"
	"github.com/bookchat-dev/bookchat/pkg/chat"
	"github.com/bookchat-dev/bookchat/pkg/client"
	"github.com/bookchat-dev/bookchat/pkg/config"
	"github.com/bookchat-dev/bookchat/pkg/session"
	"github.com/bookchat-dev/bookchat/pkg/transcript"
)

// App bundles the wired subsystems for one running chat client.
type App struct {
	Config    *config.Config
	Store     session.Store
	SessionID string
	API       *api.Client
	Books     *books.SavedBooks
	Chat      *client.SessionClient
	Janitor   *session.Janitor

	log zerolog.Logger
}

// New builds a fully wired App from configuration. view and notifier may be
// nil for headless use.
func New(cfg *config.Config, view client.View, notifier client.Notifier, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionID, err := session.LoadOrCreateIdentity(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	apiClient, err := api.NewClient(api.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	saved := books.New(apiClient, logger)

	if view == nil {
		view = client.NopView{}
	}
	view = newMirrorView(view, store, sessionID, logger)

	chatClient, err := client.New(apiClient, sessionID, client.Config{
		ReconnectDelay: cfg.ReconnectDelay,
		WelcomeText:    cfg.WelcomeText,
		SendErrorText:  cfg.SendErrorText,
		SendRate:       cfg.SendRate,
		SendBurst:      cfg.SendBurst,
		KeyCap:         cfg.KeyCap,
	}, view, notifier, saved, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Store:     store,
		SessionID: sessionID,
		API:       apiClient,
		Books:     saved,
		Chat:      chatClient,
		log:       logger,
	}

	if cfg.Janitor.Enabled {
		app.Janitor = session.NewJanitor(store, cfg.Janitor.MaxAge, cfg.Janitor.Schedule, logger)
	}

	return app, nil
}

// Close releases the app's resources. The chat stream is terminated, the
// janitor stopped, and the store closed.
func (a *App) Close() {
	if a.Chat != nil {
		a.Chat.Close()
	}
	if a.Janitor != nil {
		a.Janitor.Stop()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func newStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
			TTL:      cfg.Storage.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	default:
		store, err := session.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil
	}
}

// mirrorView decorates a View with a local persistence mirror so the CLI
// can show prior context without the backend. Every applied message state
// is stored; replaying them through the transcript reconstructs the view.
type mirrorView struct {
	client.View
	store     session.Store
	sessionID string
	log       zerolog.Logger
}

func newMirrorView(delegate client.View, store session.Store, sessionID string, logger zerolog.Logger) *mirrorView {
	return &mirrorView{
		View:      delegate,
		store:     store,
		sessionID: sessionID,
		log:       logger,
	}
}

func (m *mirrorView) Append(e *transcript.Entry) {
	m.persist(e)
	m.View.Append(e)
}

func (m *mirrorView) Update(e *transcript.Entry) {
	m.persist(e)
	m.View.Update(e)
}

func (m *mirrorView) Reset(entries []*transcript.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.ClearMessages(ctx, m.sessionID); err != nil {
		m.log.Warn().Err(err).Msg("clear session mirror failed")
	}
	for _, e := range entries {
		m.persist(e)
	}
	m.View.Reset(entries)
}

func (m *mirrorView) persist(e *transcript.Entry) {
	msg := &chat.Message{
		ID:        e.ID,
		Role:      e.Role,
		Content:   e.Content,
		Status:    e.Status,
		Timestamp: e.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.AppendMessage(ctx, m.sessionID, msg); err != nil {
		m.log.Warn().Err(err).Msg("mirror message failed")
	}
}
