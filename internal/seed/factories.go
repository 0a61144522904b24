package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brianvoe/gofakeit/v6"
)

var (
	listingCategories = []string{"Electronics", "Books", "Furniture", "Clothing", "Kitchen", "Sports"}
	listingConditions = []string{"New", "Like new", "Good", "Fair"}
	courses           = []string{"CSC 201", "MAT 112", "PHY 101", "ECO 210", "BBM 305", "LAW 120", "ENG 231"}
	vendors           = []string{"Mama Oliech Kitchen", "Campus Grill", "Chapo Point", "Java House", "Student Centre Cafe"}
	venues            = []string{"Main Hall", "Library Lawn", "Sports Ground", "Lecture Theatre 2", "Student Centre"}
	genders           = []string{"any", "male", "female"}
)

// Factory builds demo content for one campus. Built rows are not persisted;
// the Seeder inserts them through the backend.
type Factory struct {
	r       *rand.Rand
	faker   *gofakeit.Faker
	maxDays int
	now     func() time.Time
}

// NewFactory creates a factory. A zero seed uses the clock.
func NewFactory(seed int64, maxDays int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{
		// #nosec G404: acceptable for seeding
		r:       rand.New(rand.NewSource(seed)),
		faker:   gofakeit.New(seed),
		maxDays: maxDays,
		now:     time.Now,
	}
}

// createdAt spreads rows over the last maxDays.
func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.r.Intn(f.maxDays))*24*time.Hour +
		time.Duration(f.r.Intn(24))*time.Hour +
		time.Duration(f.r.Intn(60))*time.Minute
	return f.now().Add(-back)
}

func (f *Factory) pick(values []string) string {
	return values[f.r.Intn(len(values))]
}

func (f *Factory) price(min, max int) float64 {
	// Whole shillings, rounded to the nearest 50.
	return float64((min + f.r.Intn(max-min)) / 50 * 50)
}

func (f *Factory) phone() string {
	return fmt.Sprintf("07%08d", f.r.Intn(100000000))
}

func (f *Factory) scope(campus models.Campus, userID string) models.CampusScoped {
	return models.CampusScoped{CampusID: campus.ID, UserID: userID}
}

// Confession builds an anonymous or signed confession.
func (f *Factory) Confession(campus models.Campus, author Author) *models.Confession {
	c := &models.Confession{
		CampusScoped: f.scope(campus, author.ID),
		Content:      f.faker.Paragraph(1, 2, 12, " "),
		IsAnonymous:  f.r.Float32() < 0.7,
	}
	if !c.IsAnonymous {
		c.AuthorName = author.Name
	}
	c.CreatedAt = f.createdAt()
	return c
}

// Listing builds a marketplace listing.
func (f *Factory) Listing(campus models.Campus, author Author) *models.MarketplaceListing {
	l := &models.MarketplaceListing{
		CampusScoped: f.scope(campus, author.ID),
		Title:        strings.TrimSuffix(f.faker.Sentence(4), "."),
		Description:  f.faker.Sentence(14),
		Price:        f.price(200, 40000),
		Category:     f.pick(listingCategories),
		Condition:    f.pick(listingConditions),
		Contact:      f.phone(),
		ImageURLs:    []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())},
	}
	l.CreatedAt = f.createdAt()
	return l
}

// Event builds an upcoming campus event.
func (f *Factory) Event(campus models.Campus, author Author) *models.Event {
	e := &models.Event{
		CampusScoped: f.scope(campus, author.ID),
		Title:        strings.TrimSuffix(f.faker.Sentence(5), "."),
		Description:  f.faker.Paragraph(1, 3, 10, " "),
		Location:     f.pick(venues),
		StartsAt:     f.now().Add(time.Duration(1+f.r.Intn(30*24)) * time.Hour).Truncate(time.Hour),
		ImageURL:     fmt.Sprintf("https://picsum.photos/seed/event-%s/1200/600", f.faker.UUID()),
	}
	e.CreatedAt = f.createdAt()
	return e
}

// Food builds a food item from a campus vendor.
func (f *Factory) Food(campus models.Campus, author Author) *models.FoodItem {
	item := &models.FoodItem{
		CampusScoped: f.scope(campus, author.ID),
		Name:         f.faker.Dinner(),
		Description:  f.faker.Sentence(10),
		Price:        f.price(100, 900),
		Vendor:       f.pick(vendors),
		Location:     f.pick(venues),
		ImageURL:     fmt.Sprintf("https://picsum.photos/seed/food-%s/800/800", f.faker.UUID()),
	}
	item.CreatedAt = f.createdAt()
	return item
}

// Note builds shared notes for a course. FileURL points at a placeholder
// document since seeding never uploads.
func (f *Factory) Note(campus models.Campus, author Author) *models.Note {
	course := f.pick(courses)
	topic := f.faker.BuzzWord()
	n := &models.Note{
		CampusScoped: f.scope(campus, author.ID),
		Title:        fmt.Sprintf("%s notes: %s", course, topic),
		Course:       course,
		Description:  f.faker.Sentence(12),
		FileName:     strings.ReplaceAll(strings.ToLower(course+"-"+topic), " ", "-") + ".pdf",
	}
	n.FileURL = "https://example.com/notes/" + n.FileName
	n.CreatedAt = f.createdAt()
	return n
}

// Roommate builds a roommate post.
func (f *Factory) Roommate(campus models.Campus, author Author) *models.RoommatePost {
	moveIn := f.now().AddDate(0, 0, 7+f.r.Intn(60)).Truncate(24 * time.Hour)
	p := &models.RoommatePost{
		CampusScoped:     f.scope(campus, author.ID),
		Title:            fmt.Sprintf("Looking for a roommate near %s", campus.Location),
		Description:      f.faker.Paragraph(1, 2, 12, " "),
		Budget:           f.price(3000, 25000),
		Location:         f.faker.Street(),
		MoveInDate:       &moveIn,
		GenderPreference: f.pick(genders),
		Contact:          f.phone(),
	}
	p.CreatedAt = f.createdAt()
	return p
}

// Name returns a realistic full name for a demo account.
func (f *Factory) Name() string {
	return f.faker.FirstName() + " " + f.faker.LastName()
}
