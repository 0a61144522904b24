package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/google/uuid"
)

// Storage buckets.
const (
	BucketMarketplace = "marketplace"
	BucketEvents      = "events"
	BucketFood        = "food"
	BucketNotes       = "notes"
)

const (
	maxTitleLen      = 120
	maxConfessionLen = 2000
	maxNoteBytes     = 25 << 20
)

// dateLayouts are accepted for date fields, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func (s *Service) submitConfession(ctx context.Context, a Author, p postform.Payload) error {
	text := p.String("content")
	if utf8.RuneCountInString(text) > maxConfessionLen {
		return models.NewValidationError(fmt.Sprintf("Confessions are limited to %d characters", maxConfessionLen))
	}
	anonymous := p.String("anonymous") != "false"
	c := &models.Confession{
		CampusScoped: scope(a),
		Content:      text,
		IsAnonymous:  anonymous,
	}
	if !anonymous {
		c.AuthorName = a.User.Name
	}
	return s.insert(ctx, models.TableConfessions, c)
}

func (s *Service) submitListing(ctx context.Context, a Author, p postform.Payload) error {
	if err := checkTitle(p.String("title")); err != nil {
		return err
	}
	price, err := parseAmount("Price", p.String("price"))
	if err != nil {
		return err
	}
	images := p.Files("images")
	if len(images) > MaxListingImages {
		return models.NewValidationError(fmt.Sprintf("You can add up to %d photos", MaxListingImages))
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.uploadImage(ctx, BucketMarketplace, a.Campus.ID, img)
		if err != nil {
			return err
		}
		urls = append(urls, url)
	}
	return s.insert(ctx, models.TableMarketplace, &models.MarketplaceListing{
		CampusScoped: scope(a),
		Title:        p.String("title"),
		Description:  p.String("description"),
		Price:        price,
		Category:     p.String("category"),
		Condition:    p.String("condition"),
		Contact:      p.String("contact"),
		ImageURLs:    urls,
	})
}

func (s *Service) submitEvent(ctx context.Context, a Author, p postform.Payload) error {
	if err := checkTitle(p.String("title")); err != nil {
		return err
	}
	startsAt, err := parseDate("Date and time", p.String("starts_at"))
	if err != nil {
		return err
	}
	imageURL, err := s.optionalImage(ctx, BucketEvents, a.Campus.ID, p.File("image"))
	if err != nil {
		return err
	}
	return s.insert(ctx, models.TableEvents, &models.Event{
		CampusScoped: scope(a),
		Title:        p.String("title"),
		Description:  p.String("description"),
		Location:     p.String("location"),
		StartsAt:     startsAt,
		ImageURL:     imageURL,
	})
}

func (s *Service) submitFood(ctx context.Context, a Author, p postform.Payload) error {
	if err := checkTitle(p.String("name")); err != nil {
		return err
	}
	price, err := parseAmount("Price", p.String("price"))
	if err != nil {
		return err
	}
	imageURL, err := s.optionalImage(ctx, BucketFood, a.Campus.ID, p.File("image"))
	if err != nil {
		return err
	}
	return s.insert(ctx, models.TableFood, &models.FoodItem{
		CampusScoped: scope(a),
		Name:         p.String("name"),
		Description:  p.String("description"),
		Price:        price,
		Vendor:       p.String("vendor"),
		Location:     p.String("location"),
		ImageURL:     imageURL,
	})
}

func (s *Service) submitNote(ctx context.Context, a Author, p postform.Payload) error {
	if err := checkTitle(p.String("title")); err != nil {
		return err
	}
	file := p.File("file")
	if file == nil {
		return models.NewValidationError("File is required")
	}
	if file.Size > maxNoteBytes {
		return models.NewValidationError("Files are limited to 25MB")
	}
	name := cleanFileName(file.Name)
	key := a.Campus.ID + "/" + uuid.NewString() + "-" + name
	if err := s.upload(ctx, BucketNotes, key, *file, file.ContentType); err != nil {
		return err
	}
	return s.insert(ctx, models.TableNotes, &models.Note{
		CampusScoped: scope(a),
		Title:        p.String("title"),
		Course:       strings.ToUpper(p.String("course")),
		Description:  p.String("description"),
		FileURL:      s.storage.PublicURL(BucketNotes, key),
		FileName:     name,
	})
}

func (s *Service) submitRoommate(ctx context.Context, a Author, p postform.Payload) error {
	if err := checkTitle(p.String("title")); err != nil {
		return err
	}
	var budget float64
	if raw := p.String("budget"); raw != "" {
		var err error
		if budget, err = parseAmount("Budget", raw); err != nil {
			return err
		}
	}
	var moveIn *time.Time
	if raw := p.String("move_in_date"); raw != "" {
		d, err := parseDate("Move-in date", raw)
		if err != nil {
			return err
		}
		moveIn = &d
	}
	return s.insert(ctx, models.TableRoommates, &models.RoommatePost{
		CampusScoped:     scope(a),
		Title:            p.String("title"),
		Description:      p.String("description"),
		Budget:           budget,
		Location:         p.String("location"),
		MoveInDate:       moveIn,
		GenderPreference: p.String("gender_preference"),
		Contact:          p.String("contact"),
	})
}

func (s *Service) insert(ctx context.Context, table string, row any) error {
	if err := s.tables.Insert(ctx, table, row); err != nil {
		return backend.Wrap(err)
	}
	return nil
}

func (s *Service) optionalImage(ctx context.Context, bucket, campusID string, f *postform.File) (string, error) {
	if f == nil {
		return "", nil
	}
	return s.uploadImage(ctx, bucket, campusID, *f)
}

// uploadImage downsizes an image, re-encodes it as WebP and stores it under
// <campus>/<uuid>.webp.
func (s *Service) uploadImage(ctx context.Context, bucket, campusID string, f postform.File) (string, error) {
	if !platform.IsImage(f.ContentType) {
		return "", models.NewValidationError(fmt.Sprintf("%s is not a supported image", f.Name))
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := platform.NormalizeImage(rc)
	if err != nil {
		return "", models.NewValidationError(fmt.Sprintf("Could not process %s: %v", f.Name, err))
	}
	key := campusID + "/" + uuid.NewString() + ".webp"
	if err := s.storage.Upload(ctx, bucket, key, bytes.NewReader(data), "image/webp"); err != nil {
		return "", backend.Wrap(err)
	}
	return s.storage.PublicURL(bucket, key), nil
}

func (s *Service) upload(ctx context.Context, bucket, key string, f postform.File, contentType string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if err := s.storage.Upload(ctx, bucket, key, io.LimitReader(rc, maxNoteBytes), contentType); err != nil {
		return backend.Wrap(err)
	}
	return nil
}

func scope(a Author) models.CampusScoped {
	return models.CampusScoped{CampusID: a.Campus.ID, UserID: a.User.ID}
}

func checkTitle(title string) error {
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	return nil
}

// parseAmount accepts a non-negative number, tolerating thousands separators.
func parseAmount(label, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, models.NewValidationError(label + " must be a number")
	}
	if v < 0 {
		return 0, models.NewValidationError(label + " cannot be negative")
	}
	if v == 0 {
		// Drops the sign of -0.
		v = 0
	}
	return v, nil
}

func parseDate(label, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, models.NewValidationError(label + " is not a valid date")
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
