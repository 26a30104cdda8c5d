package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"go.mau.fi/whatsmeow/types/events"

	"project_citabot/internal/config"
	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
	"project_citabot/internal/interfaces"
	"project_citabot/internal/interfaces/http"
	"project_citabot/internal/repository"
	"project_citabot/internal/usecases"
)

// app holds everything the commands share.
type app struct {
	cfg   *config.Config
	db    *infrastructure.PostgresClient
	cache interfaces.Cache
	queue interfaces.TaskQueue

	// inline is set when no Redis is configured; tasks then run in-process.
	inline *infrastructure.InlineQueue

	users         *repository.UserRepository
	wa            *infrastructure.WhatsAppManager
	tg            *infrastructure.TelegramBotManager
	hub           *infrastructure.Hub
	auth          *usecases.AuthUsecase
	dashboard     *usecases.DashboardUsecase
	conversations *usecases.ConversationService
	messages      *usecases.MessageService
	personalities *usecases.PersonalityService
	videos        *usecases.VideoService
	leads         *usecases.LeadService
	availability  *usecases.AvailabilityService
	billing       *usecases.BillingService
	calendar      *usecases.CalendarService
	translation   *usecases.TranslationService
	telegram      *usecases.TelegramService
	websites      *usecases.WebsiteService
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}
	infrastructure.SetupLogger(cfg.LogLevel, cfg.LogPretty)
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*infrastructure.PostgresClient, error) {
	db, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// buildApp wires repositories, integrations and services. Integrations whose
// settings are missing stay nil and the services report them as not configured.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}

	if cfg.RedisURL != "" {
		cache, err := infrastructure.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.cache = cache
		queue, err := infrastructure.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.queue = queue
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-memory cache and in-process tasks")
		a.cache = infrastructure.NewMemoryCache()
		a.inline = infrastructure.NewInlineQueue()
		a.queue = a.inline
	}

	pool := db.Pool
	a.users = repository.NewUserRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	personalityRepo := repository.NewPersonalityRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	availabilityRepo := repository.NewAvailabilityRepository(pool)
	billingRepo := repository.NewBillingRepository(pool)
	googleRepo := repository.NewGoogleAccountRepository(pool)

	var ai interfaces.AIClient
	var mediaProcessor *usecases.MediaProcessor
	if cfg.OpenAIAPIKey != "" {
		client, err := infrastructure.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout)
		if err != nil {
			a.close()
			return nil, err
		}
		ai = client
		mediaProcessor = usecases.NewMediaProcessor(infrastructure.NewMediaReader(client, cfg.TranscriptionModel, cfg.VisionModel))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, automatic replies are disabled")
	}

	var gateway usecases.PaymentGateway
	if cfg.StripeEnabled() {
		g, err := infrastructure.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		if err != nil {
			a.close()
			return nil, err
		}
		gateway = g
	}

	var calendarProvider interfaces.CalendarProvider
	if cfg.GoogleOAuthEnabled() {
		g, err := infrastructure.NewGoogleCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			a.close()
			return nil, err
		}
		calendarProvider = g
	}

	var translator interfaces.Translator
	if cfg.GoogleTranslateAPIKey != "" {
		t, err := infrastructure.NewGoogleTranslator(ctx, cfg.GoogleTranslateAPIKey)
		if err != nil {
			a.close()
			return nil, err
		}
		translator = t
	}

	var media interfaces.MediaStore
	var downloader interfaces.VideoDownloader
	if cfg.S3Enabled() {
		store, err := infrastructure.NewS3Store(infrastructure.S3Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		media = store
		downloader = infrastructure.NewYtDlp(cfg.YtDlpPath, cfg.VideoTempDir)
	}

	a.hub = infrastructure.NewHub()
	a.wa = infrastructure.NewWhatsAppManager(cfg.DevicesDir, cfg.LogLevel)
	a.tg = infrastructure.NewTelegramBotManager()
	channels := infrastructure.NewChannels(a.wa, a.tg, a.hub)

	a.auth = usecases.NewAuthUsecase(a.users, cfg.JWTSecret)
	a.calendar = usecases.NewCalendarService(calendarProvider, googleRepo, a.cache)
	a.availability = usecases.NewAvailabilityService(availabilityRepo, a.calendar, time.Local)
	a.conversations = usecases.NewConversationService(conversationRepo, personalityRepo, settingsRepo, channels, a.hub)
	a.personalities = usecases.NewPersonalityService(personalityRepo)
	a.videos = usecases.NewVideoService(downloader, media, personalityRepo, a.queue)
	a.leads = usecases.NewLeadService(usecases.LeadServiceDeps{
		Leads:          leadRepo,
		Conversations:  conversationRepo,
		Personalities:  personalityRepo,
		Settings:       settingsRepo,
		Users:          a.users,
		Usage:          usageRepo,
		Queue:          a.queue,
		Messengers:     channels,
		AI:             ai,
		DefaultCountry: cfg.DefaultCountryCode,
	})
	a.messages = usecases.NewMessageService(usecases.MessageServiceDeps{
		Conversations: a.conversations,
		Availability:  a.availability,
		Leads:         a.leads,
		Personalities: personalityRepo,
		Settings:      settingsRepo,
		Users:         a.users,
		Usage:         usageRepo,
		Cache:         a.cache,
		AI:            ai,
		Messengers:    channels,
		Media:         mediaProcessor,
		Limiter:       infrastructure.NewMessageRateLimiter(1, 5),
		Guard:         infrastructure.NewReplyGuard(2 * time.Minute),
	})
	a.dashboard = usecases.NewDashboardUsecase(settingsRepo, a.users, usageRepo, conversationRepo, leadRepo, a.availability)
	a.billing = usecases.NewBillingService(gateway, billingRepo, a.users, cfg.IsProduction(), cfg.FrontendURL)
	a.translation = usecases.NewTranslationService(translator, a.cache)
	a.telegram = usecases.NewTelegramService(a.tg, repository.NewTelegramRepository(pool))
	a.websites = usecases.NewWebsiteService(repository.NewWebsiteRepository(pool), a.users, a.translation, cfg.PublicSiteDomain)

	a.wa.HandlerFactory = a.whatsAppHandler
	a.tg.MessageHandler = func(in entities.InboundMessage) { go a.dispatch(in) }
	return a, nil
}

// whatsAppHandler routes events of one tenant's WhatsApp session into the
// message pipeline.
func (a *app) whatsAppHandler(client *infrastructure.WhatsAppClient) func(interface{}) {
	return func(evt interface{}) {
		msg, ok := evt.(*events.Message)
		if !ok {
			return
		}
		in, ok := client.ParseMessage(msg)
		if !ok {
			return
		}
		go a.dispatch(in)
	}
}

// dispatch runs one inbound message through the pipeline with its own
// deadline.
func (a *app) dispatch(in entities.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := a.messages.HandleInbound(ctx, in); err != nil {
		log.Error().Err(err).Int("user_id", in.UserID).Str("platform", in.Platform).Str("from", in.ExternalID).Msg("failed to handle inbound message")
	}
}

func (a *app) registerTasks(server interfaces.TaskServer) {
	server.Register(usecases.TaskLeadSend, a.leads.HandleLeadSend)
	server.Register(usecases.TaskVideoIngest, a.videos.HandleIngestTask)
}

func (a *app) ensureAdmin(ctx context.Context) {
	if a.cfg.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD not set, skipping admin bootstrap")
		return
	}
	created, err := a.auth.EnsureAdmin(ctx, a.cfg.AdminUsername, a.cfg.AdminPassword)
	if err != nil {
		log.Error().Err(err).Msg("failed to ensure admin user")
		return
	}
	if created {
		log.Info().Str("username", a.cfg.AdminUsername).Msg("admin user created")
	}
}

// sessionAllowed reports whether a stored WhatsApp session may reconnect.
func (a *app) sessionAllowed(ctx context.Context) func(userID int) bool {
	return func(userID int) bool {
		u, err := a.users.GetByID(ctx, userID)
		if err != nil || u == nil {
			return false
		}
		return u.IsActive && u.WAEnabled
	}
}

func (a *app) accountActive(ctx context.Context) func(userID int) bool {
	return func(userID int) bool {
		u, err := a.users.GetByID(ctx, userID)
		return err == nil && u != nil && u.IsActive
	}
}

func (a *app) router() *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	http.SetupRoutes(r, http.Services{
		Auth:          a.auth,
		Users:         a.users,
		Dashboard:     a.dashboard,
		Conversations: a.conversations,
		Messages:      a.messages,
		Personalities: a.personalities,
		Videos:        a.videos,
		Leads:         a.leads,
		Availability:  a.availability,
		Billing:       a.billing,
		Calendar:      a.calendar,
		Translation:   a.translation,
		Telegram:      a.telegram,
		Websites:      a.websites,
		WhatsApp:      a.wa,
		Hub:           a.hub,
		FrontendURL:   a.cfg.FrontendURL,
		CORSOrigins:   a.cfg.CORSOrigins,
	}, http.NewMiddleware(a.cfg.JWTSecret))
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (a *app) close() {
	if a.wa != nil {
		a.wa.DisconnectAll()
	}
	if a.tg != nil {
		a.tg.DisconnectAll()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close task queue")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close cache")
		}
	}
	a.db.Close()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.ensureAdmin(ctx)
	if n := a.wa.RestoreSessions(ctx, a.sessionAllowed(ctx)); n > 0 {
		log.Info().Int("sessions", n).Msg("whatsapp sessions restored")
	}
	if n := a.telegram.Restore(ctx, a.accountActive(ctx)); n > 0 {
		log.Info().Int("bots", n).Msg("telegram bots restored")
	}

	// Tasks that send through WhatsApp run here, next to the only process
	// holding the device sessions.
	var tasks interfaces.TaskServer = a.inline
	if a.inline == nil {
		server, err := infrastructure.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency, cfg.AsynqQueues)
		if err != nil {
			return err
		}
		tasks = server
	}
	a.registerTasks(tasks)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tasks.Run(ctx); err != nil {
			log.Error().Err(err).Msg("task server stopped")
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupLoop(ctx, a.videos)
	}()

	srv := &nethttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		stop()
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	wg.Wait()
	return err
}

// cleanupLoop removes stale downloads every half hour.
func cleanupLoop(ctx context.Context, videos *usecases.VideoService) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := videos.Cleanup(usecases.TempFileMaxAge); err != nil {
				log.Warn().Err(err).Msg("temp video cleanup failed")
			}
		}
	}
}

func worker(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return errors.New("worker needs REDIS_URL; without it serve runs tasks in-process")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// The worker never opens WhatsApp sessions: a device store can only be
	// connected from one process, and serve owns them.
	server, err := infrastructure.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency, usecases.QueueMedia)
	if err != nil {
		return err
	}
	server.Register(usecases.TaskVideoIngest, a.videos.HandleIngestTask)
	log.Info().Int("concurrency", cfg.AsynqConcurrency).Str("queue", usecases.QueueMedia).Msg("worker started")
	return server.Run(ctx)
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	db.Close()
	log.Info().Msg("database schema is up to date")
	return nil
}

func cleanupVideos(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := infrastructure.NewYtDlp(cfg.YtDlpPath, cfg.VideoTempDir).CleanupOlderThan(cmd.Duration("max-age"))
	if err != nil {
		return err
	}
	log.Info().Int("files", n).Str("dir", cfg.VideoTempDir).Msg("video cleanup finished")
	return nil
}

func ensureAdmin(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required")
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	created, err := usecases.NewAuthUsecase(repository.NewUserRepository(db.Pool), cfg.JWTSecret).
		EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}
	log.Info().Bool("created", created).Str("username", cfg.AdminUsername).Msg("admin account checked")
	return nil
}
