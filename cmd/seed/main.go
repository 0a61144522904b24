// Command main loads the campus catalogue and demo data into the platform.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/brayobiz/campus-hub-sub000/internal/bootstrap"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/seed"
)

func main() {
	// Parse command line flags
	catalog := flag.String("catalog", "", "Campus catalogue YAML (defaults to the built-in list)")
	campusesOnly := flag.Bool("campuses-only", false, "Only load the campus catalogue")
	users := flag.Int("users", 5, "Demo accounts per campus")
	campuses := flag.Int("campuses", 2, "Number of campuses that get demo data")
	items := flag.Int("items", 8, "Rows per feed on each demo campus")
	maxDays := flag.Int("days", 30, "Spread created_at over this many past days")
	password := flag.String("password", seed.DefaultPassword, "Password of every demo account")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 is random)")
	flag.Parse()

	log.Println("🌱 Campus Hub Seeder")
	log.Println("====================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer rt.Close()
	if rt.Degraded() {
		log.Fatal("❌ BACKEND_URL and BACKEND_KEY must be set to seed")
	}

	s := seed.NewSeeder(rt.Provider.ClientFor("seeder"), seed.Options{
		CatalogPath:    *catalog,
		CampusesOnly:   *campusesOnly,
		UsersPerCampus: *users,
		DemoCampuses:   *campuses,
		ItemsPerFeed:   *items,
		MaxDays:        *maxDays,
		Password:       *password,
		Seed:           *randSeed,
	})
	report, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Seeded %d campuses, %d demo accounts, items: %v", report.Campuses, report.Users, report.Items)
	if !*campusesOnly {
		log.Printf("📧 All demo accounts have the password: %s", *password)
	}
}
