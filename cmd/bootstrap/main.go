package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/seed"
	"github.com/TamirHazut/ERP/internal/store/mongodb"
)

// bootstrap prepares a fresh deployment: collection indexes, builtin
// permissions, the system tenant and the first administrator.
func main() {
	log.SetFlags(0)
	var (
		uri      = flag.String("mongo-uri", envOr("ERP_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
		database = flag.String("mongo-db", envOr("ERP_MONGO_DB", "erp_auth"), "MongoDB database name")
		tenant   = flag.String("tenant", envOr("ERP_BOOTSTRAP_TENANT", "system"), "system tenant name")
		username = flag.String("user", envOr("ERP_BOOTSTRAP_USER", "admin"), "bootstrap admin username")
		password = flag.String("password", os.Getenv("ERP_BOOTSTRAP_PASSWORD"), "bootstrap admin password (empty skips the user)")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongodb.Connect(ctx, *uri)
	if err != nil {
		log.Fatalf("connect mongodb: %v", err)
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_ = client.Disconnect(dctx)
	}()

	store := mongodb.New(client.Database(*database))
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}

	rbac, err := auth.NewRBACService(store)
	if err != nil {
		log.Fatalf("build rbac service: %v", err)
	}

	if err := seed.Bootstrap(ctx, store, rbac, seed.Options{
		TenantName: *tenant,
		Username:   *username,
		Password:   *password,
	}); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Println("bootstrap complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
