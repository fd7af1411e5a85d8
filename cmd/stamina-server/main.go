// Package main is the entry point for the stamina simulation server.
// It only handles dependency injection and server initialization.
// NO simulation logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/staminalab/stamina-server/internal/engine"
	"github.com/staminalab/stamina-server/internal/events"
	"github.com/staminalab/stamina-server/internal/infra/storage"
	"github.com/staminalab/stamina-server/internal/network"
	"github.com/staminalab/stamina-server/internal/platform/logger"
	"github.com/staminalab/stamina-server/internal/platform/metrics"
	"github.com/staminalab/stamina-server/internal/platform/optimization"
	"github.com/staminalab/stamina-server/internal/sim"
)

// SQLitePersisterAdapter translates domain events to storage records.
type SQLitePersisterAdapter struct {
	repo *storage.SQLiteEventRepository
}

func (a *SQLitePersisterAdapter) Append(event events.SimEvent) error {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payloadMap map[string]interface{}
	json.Unmarshal(payloadBytes, &payloadMap)

	record := storage.SimEventRecord{
		ID:        event.ID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		Payload:   payloadMap,
	}

	start := time.Now()
	err := a.repo.Append(context.Background(), record)
	metrics.Get().RecordEventWrite(time.Since(start), err)
	return err
}

// bootstrapSession restores the most recent session from the database, or
// starts a fresh one. The persisted snapshot is cross-checked against the
// event ledger; whichever saw more frames wins.
func bootstrapSession(ctx context.Context, sessionRepo *storage.SQLiteSessionRepository,
	eventRepo *storage.SQLiteEventRepository, simEngine *sim.Engine, cfg *sim.Config,
	appLogger *logger.Logger) (sessionID string, startedAt time.Time) {

	snap, err := sessionRepo.GetLatest(ctx)
	if err != nil {
		appLogger.Error("Failed to query DB for sessions: %v", err)
	}

	if snap == nil {
		sessionID = "S-" + uuid.NewString()[:8]
		startedAt = time.Now()
		appLogger.Info("Database empty. Starting fresh session %s", sessionID)
		_ = sessionRepo.Upsert(ctx, storage.SessionSnapshot{
			SessionID: sessionID,
			Policy:    string(cfg.Policy()),
			Primary:   sim.Cap,
			Secondary: sim.Cap,
			StartedAt: startedAt,
		})
		return sessionID, startedAt
	}

	appLogger.Info("Resuming session %s from SQLite state...", snap.SessionID)
	if err := cfg.SetPolicy(sim.Policy(snap.Policy)); err != nil {
		appLogger.Warn("Stored policy %q unknown, keeping default: %v", snap.Policy, err)
	}

	restored := sim.State{Primary: snap.Primary, Secondary: snap.Secondary}

	// The snapshot row is written every few seconds; the ledger may be ahead.
	reconstructor := storage.NewReconstructor(eventRepo)
	if rebuilt, err := reconstructor.RebuildSessionState(ctx, snap.SessionID, sim.Cap); err == nil && rebuilt.Frame > snap.FrameCount {
		appLogger.Info("Event ledger ahead of snapshot (frame %d > %d), using rebuilt state.", rebuilt.Frame, snap.FrameCount)
		restored = sim.State{Primary: rebuilt.Primary, Secondary: rebuilt.Secondary}
	}

	simEngine.Restore(restored)
	return snap.SessionID, snap.StartedAt
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "stamina.db", "SQLite database path")
	policyName := flag.String("policy", string(sim.PolicyDualBar), "meter policy: CEILING or DUAL_BAR")
	stress := flag.Bool("stress", false, "use stress-test tuning profile")
	flag.Parse()

	log.Println("[STAMINA-SERVER] Initializing authoritative meter simulator...")

	appLogger := logger.NewLogger()

	tuning := optimization.DefaultConfig()
	if *stress {
		tuning = optimization.StressConfig()
	}

	appLogger.Info("Initializing SQLite database %q...", *dbPath)
	db, err := storage.InitSQLite(*dbPath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: %v", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(tuning.DBMaxOpenConns)
	db.SetMaxIdleConns(tuning.DBMaxIdleConns)

	eventRepo := storage.NewSQLiteEventRepository(db)
	eventPersister := &SQLitePersisterAdapter{repo: eventRepo}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(eventPersister)

	appLogger.Info("Bootstrapping simulation core...")
	cfg := sim.NewConfig(sim.PolicyDualBar)
	if err := cfg.SetPolicy(sim.Policy(*policyName)); err != nil {
		appLogger.Error("Invalid -policy: %v", err)
		os.Exit(1)
	}
	input := &sim.Signal{}
	simEngine := sim.NewEngine(cfg, input)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionRepo := storage.NewSQLiteSessionRepository(db)
	sessionID, startedAt := bootstrapSession(ctx, sessionRepo, eventRepo, simEngine, cfg, appLogger)

	runner := engine.NewRunner(simEngine, cfg, input, eventLog, appLogger, nil, sessionID, tuning)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger, runner, tuning)
	runner.SetSink(hub)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	go runner.Run(ctx)

	// Automated session backup routine
	go func() {
		backupTicker := time.NewTicker(5 * time.Second)
		defer backupTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-backupTicker.C:
				state := simEngine.Snapshot()
				_ = sessionRepo.Upsert(ctx, storage.SessionSnapshot{
					SessionID:  sessionID,
					Policy:     string(cfg.Policy()),
					Primary:    state.Primary,
					Secondary:  state.Secondary,
					FrameCount: runner.Frames(),
					StartedAt:  startedAt,
				})
			}
		}
	}()

	// Setup API routes
	control := network.NewControlBridge(runner, simEngine, cfg, appLogger)
	replay := network.NewReplayHandler(eventLog, appLogger)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})
	http.HandleFunc("/api/reset", control.HandleReset)
	http.HandleFunc("/api/param", control.HandleParam)
	http.HandleFunc("/api/state", control.HandleState)
	http.HandleFunc("/api/replay", replay.HandleReplay)
	http.HandleFunc("/metrics", metrics.Handler())
	http.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	go func() {
		log.Printf("[STAMINA-SERVER] HTTP API & WS server listening on %s", *addr)
		if err := http.ListenAndServe(*addr, nil); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[STAMINA-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[STAMINA-SERVER] Shutting down...")
	cancel()

	// Final backup so a restart resumes exactly where we stopped.
	state := simEngine.Snapshot()
	_ = sessionRepo.Upsert(context.Background(), storage.SessionSnapshot{
		SessionID:  sessionID,
		Policy:     string(cfg.Policy()),
		Primary:    state.Primary,
		Secondary:  state.Secondary,
		FrameCount: runner.Frames(),
		StartedAt:  startedAt,
	})
	db.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow cross-origin requests for local UI dev servers
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
