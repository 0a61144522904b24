// Package content holds the six posting domains: their form fields, the
// callbacks that upload and insert a post, their feeds, and the confession
// reactions and alerts built on top.
package content

import (
	"context"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/feed"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
)

var contentLog = observability.NewComponentLogger("content")

// Domain names a posting screen and its feed.
type Domain string

const (
	Confessions Domain = "confessions"
	Marketplace Domain = "marketplace"
	Events      Domain = "events"
	Food        Domain = "food"
	Notes       Domain = "notes"
	Roommates   Domain = "roommates"
)

// Domains lists every domain in menu order.
var Domains = []Domain{Confessions, Marketplace, Events, Food, Notes, Roommates}

// ParseDomain validates a route parameter.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range Domains {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Table returns the backend collection of d.
func (d Domain) Table() string {
	switch d {
	case Confessions:
		return models.TableConfessions
	case Marketplace:
		return models.TableMarketplace
	case Events:
		return models.TableEvents
	case Food:
		return models.TableFood
	case Notes:
		return models.TableNotes
	case Roommates:
		return models.TableRoommates
	}
	return ""
}

// Author is who posts and where.
type Author struct {
	User   models.SessionUser
	Campus models.CampusSelection
}

// Service builds forms and feeds over one backend client.
type Service struct {
	tables   backend.Tables
	storage  backend.Storage
	realtime backend.Realtime
	repos    *repository.Repositories

	confessions repository.FeedRepository[models.Confession]
}

// New creates a content service for client.
func New(client backend.Client) *Service {
	tables := client.Tables()
	return &Service{
		tables:      tables,
		storage:     client.Storage(),
		realtime:    client.Realtime(),
		repos:       repository.New(tables),
		confessions: repository.NewFeedRepository[models.Confession](tables, models.TableConfessions),
	}
}

// FormOptions tune a posting form.
type FormOptions struct {
	SuccessDelay time.Duration
	OnSuccess    func(postform.Payload)
}

// NewForm builds the posting form of d for author.
func (s *Service) NewForm(d Domain, author Author, opts FormOptions) *postform.Form {
	return postform.New(postform.Options{
		Fields:       Fields(d),
		BeforeSubmit: s.BeforeSubmit(d, author),
		OnSuccess:    opts.OnSuccess,
		SuccessDelay: opts.SuccessDelay,
	})
}

// BeforeSubmit returns the callback that persists a post of d.
func (s *Service) BeforeSubmit(d Domain, author Author) postform.BeforeSubmit {
	submit := map[Domain]func(context.Context, Author, postform.Payload) error{
		Confessions: s.submitConfession,
		Marketplace: s.submitListing,
		Events:      s.submitEvent,
		Food:        s.submitFood,
		Notes:       s.submitNote,
		Roommates:   s.submitRoommate,
	}[d]
	return func(ctx context.Context, p postform.Payload) (bool, error) {
		if submit == nil || author.User.ID == "" || author.Campus.ID == "" {
			return false, nil
		}
		ctx = observability.WithUserID(ctx, author.User.ID)
		if err := submit(ctx, author, p); err != nil {
			return false, err
		}
		contentLog.Info(ctx, "post created", map[string]any{"domain": string(d), "campus_id": author.Campus.ID})
		return true, nil
	}
}

// OpenFeed mounts the feed of d for campus. viewerID personalises
// confessions (liked state) and may be empty.
func (s *Service) OpenFeed(d Domain, campus *models.CampusSelection, viewerID string, opts feed.Options) feed.Screen {
	switch d {
	case Confessions:
		return feed.Erase(feed.New[models.Confession](&confessionLister{s: s, viewerID: viewerID}, s.realtime, campus, opts))
	case Marketplace:
		return feed.Erase(feed.New[models.MarketplaceListing](s.repos.Marketplace, s.realtime, campus, opts))
	case Events:
		return feed.Erase(feed.New[models.Event](s.repos.Events, s.realtime, campus, opts))
	case Food:
		return feed.Erase(feed.New[models.FoodItem](s.repos.Food, s.realtime, campus, opts))
	case Notes:
		return feed.Erase(feed.New[models.Note](s.repos.Notes, s.realtime, campus, opts))
	case Roommates:
		return feed.Erase(feed.New[models.RoommatePost](s.repos.Roommates, s.realtime, campus, opts))
	}
	return nil
}

// confessionLister adds the viewer's liked state to each confession.
type confessionLister struct {
	s        *Service
	viewerID string
}

func (l *confessionLister) Table() string { return models.TableConfessions }

func (l *confessionLister) ListByCampus(ctx context.Context, campusID string, limit int) ([]models.Confession, error) {
	rows, err := l.s.confessions.ListByCampus(ctx, campusID, limit)
	if err != nil || len(rows) == 0 {
		return rows, err
	}
	liked := map[string]bool{}
	if l.viewerID != "" {
		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		if liked, err = l.s.repos.Confessions.LikedIDs(ctx, l.viewerID, ids); err != nil {
			return nil, err
		}
	}
	for i := range rows {
		rows[i].Liked = liked[rows[i].ID]
		rows[i] = rows[i].ForViewer(l.viewerID)
	}
	return rows, nil
}
