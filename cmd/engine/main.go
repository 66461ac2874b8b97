package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/nintynick/transitive-trust/internal/api"
	"github.com/nintynick/transitive-trust/internal/cache"
	"github.com/nintynick/transitive-trust/internal/db"
)

func main() {
	log.Println("Starting Transitive Trust Engine (perspectival trust over the signed graph)...")

	// ─── Configuration ──────────────────────────────────────────────────
	// DATABASE_URL is optional: without it the engine runs against the
	// in-memory graph store (useful for local development and demos, the
	// graph does not survive a restart). Everything else has safe
	// defaults. Settings come from the process environment only.
	// ────────────────────────────────────────────────────────────────────

	var store api.GraphStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pgStore, err := db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, falling back to the in-memory graph store. Error: %v", err)
			store = db.NewMemStore()
		} else {
			defer pgStore.Close()
			if err := pgStore.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			store = pgStore
		}
	} else {
		log.Println("DATABASE_URL not set — running on the in-memory graph store")
		store = db.NewMemStore()
	}

	nbhds, err := cache.New(
		getEnvInt64("NEIGHBORHOOD_CACHE_ENTRIES", cache.DefaultMaxEntries),
		getEnvDuration("NEIGHBORHOOD_CACHE_TTL", cache.DefaultTTL),
	)
	if err != nil {
		log.Fatalf("Failed to create neighborhood cache: %v", err)
	}
	defer nbhds.Close()

	// Websocket hub for graph mutation events
	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(store, nbhds, wsHub)

	port := getEnvOrDefault("PORT", "5340")
	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, val, fallback)
		return fallback
	}
	return d
}
