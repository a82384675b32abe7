package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"maintrack.org/internal/auth"
	"maintrack.org/internal/httpapi"
	"maintrack.org/internal/ids"
	"maintrack.org/internal/maintenance"
	"maintrack.org/internal/obs"
	"maintrack.org/internal/sched"
	"maintrack.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	// Without a DSN everything runs in memory (local/dev mode).
	var db *sql.DB
	var maintStore maintenance.Store
	var userStore auth.UserStore
	if dsn := os.Getenv("MAINTRACK_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		maintStore = pg.New(db)
		userStore = auth.NewPGStore(db)
	} else {
		maintStore = maintenance.NewMemoryStore()
		userStore = auth.NewMemoryStore()
	}

	users := auth.NewService(userStore)
	engine := maintenance.NewEngine(maintStore)
	maint := maintenance.NewService(maintStore, engine)

	if err := bootstrapElevatedUser(userStore); err != nil {
		log.Fatalf("bootstrap user: %v", err)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	runner := sched.NewRunner(engine, os.Getenv("MAINTRACK_RUNDUE_CRON"))
	if err := runner.Start(runCtx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, users, maint)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting maintrack-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)
	cancelRun()
	<-runner.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// bootstrapElevatedUser creates the initial elevated account from
// MAINTRACK_BOOTSTRAP_EMAIL / MAINTRACK_BOOTSTRAP_PASSWORD. A no-op when
// the variables are unset or the account already exists.
func bootstrapElevatedUser(store auth.UserStore) error {
	email := os.Getenv("MAINTRACK_BOOTSTRAP_EMAIL")
	password := os.Getenv("MAINTRACK_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := store.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return store.Create(ctx, &auth.User{
		ID:           ids.New(),
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleElevated,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
