// Package seed loads the campus catalogue and, for development, demo
// accounts with content in every feed.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
)

var seedLog = observability.NewComponentLogger("seed")

// DefaultPassword is the password of every demo account.
const DefaultPassword = "CampusHub2024"

// Options configures a seeding run.
type Options struct {
	// CatalogPath overrides the built-in campus catalogue.
	CatalogPath string
	// CampusesOnly skips demo accounts and content.
	CampusesOnly bool
	// UsersPerCampus demo accounts are created on each of the first
	// DemoCampuses campuses.
	UsersPerCampus int
	DemoCampuses   int
	// ItemsPerFeed rows are created in every feed of a demo campus.
	ItemsPerFeed int
	MaxDays      int
	Password     string
	// Seed makes generated content reproducible when non-zero.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.UsersPerCampus <= 0 {
		o.UsersPerCampus = 5
	}
	if o.DemoCampuses <= 0 {
		o.DemoCampuses = 2
	}
	if o.ItemsPerFeed <= 0 {
		o.ItemsPerFeed = 8
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	return o
}

// Author is a demo account that content is attributed to.
type Author struct {
	ID    string
	Email string
	Name  string
}

// Report counts what a run created.
type Report struct {
	Campuses int
	Users    int
	Items    map[string]int
}

// Seeder writes through a backend client so passwords are hashed and
// change events published exactly as for real sign ups and posts.
type Seeder struct {
	client  backend.Client
	repos   *repository.Repositories
	factory *Factory
	opts    Options
}

// NewSeeder creates a seeder over client.
func NewSeeder(client backend.Client, opts Options) *Seeder {
	opts = opts.withDefaults()
	return &Seeder{
		client:  client,
		repos:   repository.New(client.Tables()),
		factory: NewFactory(opts.Seed, opts.MaxDays),
		opts:    opts,
	}
}

// Run seeds the catalogue and, unless CampusesOnly is set, demo data. It is
// safe to run repeatedly: campuses and accounts are reused, content is added.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	if s.client.Degraded() {
		return nil, backend.ErrNotConfigured
	}
	catalog, err := LoadCatalog(s.opts.CatalogPath)
	if err != nil {
		return nil, err
	}
	campuses, err := Campuses(ctx, s.client.Tables(), catalog)
	if err != nil {
		return nil, err
	}
	report := &Report{Campuses: len(campuses), Items: map[string]int{}}
	seedLog.Info(ctx, "campus catalog seeded", map[string]any{"campuses": len(campuses)})
	if s.opts.CampusesOnly {
		return report, nil
	}

	for i, campus := range campuses {
		if i >= s.opts.DemoCampuses {
			break
		}
		authors, err := s.Authors(ctx, campus, s.opts.UsersPerCampus)
		if err != nil {
			return report, err
		}
		report.Users += len(authors)
		if len(authors) == 0 {
			continue
		}
		if err := s.Content(ctx, campus, authors, report.Items); err != nil {
			return report, err
		}
	}
	seedLog.Info(ctx, "demo data seeded", map[string]any{"users": report.Users, "items": report.Items})
	return report, nil
}

// Authors signs up count demo accounts on campus. Accounts that already
// exist are signed in instead; ones that cannot be signed in (unconfirmed)
// are skipped.
func (s *Seeder) Authors(ctx context.Context, campus models.Campus, count int) ([]Author, error) {
	authors := make([]Author, 0, count)
	for i := 0; i < count; i++ {
		email := fmt.Sprintf("demo%d@%s.campushub.test", i+1, strings.ToLower(campus.ShortName))
		name := s.factory.Name()

		user, err := s.account(ctx, email, name)
		if err != nil {
			return authors, err
		}
		if user == nil {
			continue
		}
		if n := user.MetadataString("full_name"); n != "" {
			name = n
		}
		author := Author{ID: user.ID, Email: email, Name: name}
		if err := s.repos.Profiles.Upsert(ctx, &models.Profile{
			Record:   models.Record{ID: author.ID},
			Email:    email,
			FullName: name,
			CampusID: campus.ID,
			Year:     fmt.Sprintf("Year %d", 1+i%4),
		}); err != nil {
			return authors, fmt.Errorf("seed profile %s: %w", email, err)
		}
		authors = append(authors, author)
	}
	return authors, nil
}

func (s *Seeder) account(ctx context.Context, email, name string) (*backend.AuthUser, error) {
	auth := s.client.Auth()
	res, err := auth.SignUp(ctx, backend.SignUpInput{
		Email:    email,
		Password: s.opts.Password,
		Metadata: map[string]any{"full_name": name},
	})
	if err == nil {
		return res.User, nil
	}
	if !errors.Is(err, backend.ErrUserExists) {
		return nil, fmt.Errorf("seed account %s: %w", email, err)
	}

	session, err := auth.SignIn(ctx, email, s.opts.Password)
	switch {
	case err == nil:
		return session.User, nil
	case errors.Is(err, backend.ErrEmailNotConfirmed), errors.Is(err, backend.ErrInvalidCredentials):
		seedLog.Warn(ctx, "skipping existing demo account", map[string]any{"email": email, "error": err.Error()})
		return nil, nil
	default:
		return nil, fmt.Errorf("sign in demo account %s: %w", email, err)
	}
}

// Content adds ItemsPerFeed rows to every feed of campus, rotating authors,
// and tallies them in counts by table.
func (s *Seeder) Content(ctx context.Context, campus models.Campus, authors []Author, counts map[string]int) error {
	f := s.factory
	for i := 0; i < s.opts.ItemsPerFeed; i++ {
		author := authors[i%len(authors)]
		rows := []struct {
			table string
			row   any
		}{
			{models.TableConfessions, f.Confession(campus, author)},
			{models.TableMarketplace, f.Listing(campus, author)},
			{models.TableEvents, f.Event(campus, author)},
			{models.TableFood, f.Food(campus, author)},
			{models.TableNotes, f.Note(campus, author)},
			{models.TableRoommates, f.Roommate(campus, author)},
		}
		for _, r := range rows {
			if err := s.client.Tables().Insert(ctx, r.table, r.row); err != nil {
				return fmt.Errorf("seed %s for %s: %w", r.table, campus.ShortName, err)
			}
			counts[r.table]++
		}
	}
	return nil
}
