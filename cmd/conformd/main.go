package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medalign-labs/conformance/pkg/alm"
	"github.com/medalign-labs/conformance/pkg/api"
	"github.com/medalign-labs/conformance/pkg/artifacts"
	"github.com/medalign-labs/conformance/pkg/auth"
	"github.com/medalign-labs/conformance/pkg/compliance"
	"github.com/medalign-labs/conformance/pkg/config"
	"github.com/medalign-labs/conformance/pkg/extract"
	"github.com/medalign-labs/conformance/pkg/observability"
	"github.com/medalign-labs/conformance/pkg/store"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Version is the engine release. Regulatory profiles pin a minimum via
// min_engine_version.
const Version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServer

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		// Default to server
		startServer()
		return 0
	}

	switch args[1] {
	case "server", "serve":
		startServer()
		return 0
	case "assess":
		return runAssessCmd(args[2:], stdout, stderr)
	case "report":
		return runReportCmd(args[2:], stdout, stderr)
	case "standards":
		return runStandardsCmd(stdout, stderr)
	case "upload":
		return runUploadCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "conformd %s\n", Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			startServer()
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sConformance Engine %sv%s%s\n", ColorBold+ColorBlue, ColorBold, Version, ColorReset)
	fmt.Fprintf(w, "%sHealthcare compliance assessment for requirements and test cases.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  conformd <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "server", "Run the HTTP API server (default)")
	printCommand(w, "health", "Check server health (HTTP)")

	printSection(w, "ASSESSMENT")
	printCommand(w, "assess", "Assess a stored work item (--requirement or --test-case)")
	printCommand(w, "report", "Generate a compliance report (--standards, --out)")
	printCommand(w, "upload", "Parse a requirements document and store its items (--file)")
	printCommand(w, "standards", "List supported regulatory standards")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// wrapAuth enforces bearer-token auth only when a validator is configured.
// Without a signing key the API runs open, matching single-tenant deployments.
func wrapAuth(h http.Handler, v *auth.JWTValidator) http.Handler {
	if v == nil {
		return h
	}
	return auth.NewMiddleware(v)(h)
}

func runServer() {
	cfg := config.Load()
	observability.InitLogging(cfg.LogLevel)
	logger := slog.Default()
	ctx := context.Background()

	fmt.Fprintf(os.Stdout, "%sConformance Engine starting...%s\n", ColorBold+ColorBlue, ColorReset)

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "conformance-engine",
		ServiceVersion: Version,
		Environment:    os.Getenv("ENVIRONMENT"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Enabled:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		Insecure:       true,
	})
	if err != nil {
		log.Fatalf("Failed to init telemetry: %v", err)
	}

	engine := compliance.NewEngine(compliance.MustCatalog())
	generator := compliance.NewReportGenerator(engine)

	// Regulatory profiles gate which deployments this engine version may
	// serve.
	profiles, err := config.LoadAllProfiles(cfg.ProfilesDir)
	if err != nil {
		logger.Warn("profile load failed", "dir", cfg.ProfilesDir, "error", err)
	}
	for code, profile := range profiles {
		if err := profile.CheckEngineVersion(Version); err != nil {
			log.Fatalf("Profile %s rejects this engine: %v", code, err)
		}
		logger.Info("regulatory profile loaded", "code", code, "standards", profile.Standards)
	}

	itemsDB, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open work item store: %v", err)
	}
	items, err := store.NewSQLiteWorkItemStore(itemsDB)
	if err != nil {
		log.Fatalf("Failed to init work item store: %v", err)
	}
	log.Println("[conformd] work items: ready")

	// Report persistence needs Postgres; without it the /reports surface
	// degrades to 503 and reports are returned inline only.
	var reports *store.PostgresReportStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("DB Ping failed: %v", err)
		}
		reports = store.NewPostgresReportStore(db)
		if err := reports.Init(ctx); err != nil {
			log.Fatalf("Failed to init report store: %v", err)
		}
		log.Println("[conformd] postgres: connected")
	} else {
		fmt.Fprintf(os.Stdout, "ℹ️  DATABASE_URL not set. Report persistence disabled (%sLite Mode%s).\n", ColorBold+ColorCyan, ColorReset)
	}

	blobStore, err := artifacts.NewStoreFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to init archive storage: %v", err)
	}
	archive := artifacts.NewArchive(blobStore)

	var extractor *extract.Client
	if cfg.OpenAIAPIKey != "" {
		extractor = extract.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if cfg.OpenAIBase != "" {
			extractor = extractor.WithBaseURL(cfg.OpenAIBase)
		}
		log.Println("[conformd] extraction model: ready")
	} else {
		logger.Warn("OPENAI_API_KEY not set, document extraction falls back to section heuristics")
	}

	var almConfigs *alm.ConfigStore
	if cfg.MasterSecret != "" {
		almConfigs, err = alm.NewConfigStore(cfg.DataDir+"/alm_configs.json", []byte(cfg.MasterSecret))
		if err != nil {
			log.Fatalf("Failed to init ALM config store: %v", err)
		}
		log.Println("[conformd] alm connectors: ready")
	} else {
		logger.Warn("MASTER_SECRET not set, ALM integration disabled")
	}

	srv := api.NewServer(api.ServerConfig{
		Engine:     engine,
		Generator:  generator,
		Items:      items,
		Reports:    reports,
		Archive:    archive,
		Extractor:  extractor,
		ALMConfigs: almConfigs,
		Obs:        obs,
		Logger:     logger,
	})

	var idemStore api.IdempotencyStorer
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		idemStore = api.NewRedisIdempotencyStore(addr, os.Getenv("REDIS_PASSWORD"), 0, 24*time.Hour)
		log.Println("[conformd] idempotency: redis")
	} else {
		idemStore = api.NewIdempotencyStore(24 * time.Hour)
	}

	limiter := api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateBurst)
	jwtValidator := auth.NewJWTValidator(cfg.JWTSecret)
	if jwtValidator == nil {
		logger.Warn("JWT_SECRET not set, authentication disabled")
	}

	handler := wrapAuth(srv.Routes(), jwtValidator)
	handler = api.IdempotencyMiddleware(idemStore)(handler)
	handler = limiter.Middleware(handler)
	handler = auth.CORSMiddleware(nil)(handler)
	handler = auth.RequestIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[conformd] ready: http://localhost:%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[conformd] press ctrl+c to stop")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[conformd] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[conformd] shutdown error: %v", err)
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Printf("[conformd] telemetry shutdown error: %v", err)
	}
	_ = itemsDB.Close()
}

func runHealthCmd(out, errOut io.Writer) int {
	cfg := config.Load()
	resp, err := http.Get(fmt.Sprintf("http://localhost:%s/health", cfg.Port))
	if err != nil {
		fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(out, "OK")
	return 0
}
