package models

import "time"

// Collection names owned by the backend.
const (
	TableProfiles           = "profiles"
	TableCampuses           = "campuses"
	TableConfessions        = "confessions"
	TableConfessionComments = "confession_comments"
	TableConfessionLikes    = "confession_likes"
	TableMarketplace        = "marketplace"
	TableEvents             = "events"
	TableFood               = "food"
	TableNotes              = "notes"
	TableRoommates          = "roommates"
	TableNotifications      = "notifications"
)

// Tables lists every collection the backend exposes.
var Tables = []string{
	TableProfiles, TableCampuses, TableConfessions, TableConfessionComments,
	TableConfessionLikes, TableMarketplace, TableEvents, TableFood, TableNotes,
	TableRoommates, TableNotifications,
}

// CampusScoped is the part every content item shares: the campus it belongs
// to and its author.
type CampusScoped struct {
	CampusID string `gorm:"size:36;not null;index" json:"campus_id"`
	UserID   string `gorm:"size:36;not null;index" json:"user_id,omitempty"`
}

// Confession is an optionally anonymous post with like and comment counters.
type Confession struct {
	Record
	CampusScoped
	Content       string `gorm:"type:text;not null" json:"content"`
	IsAnonymous   bool   `gorm:"not null;default:true" json:"is_anonymous"`
	AuthorName    string `json:"author_name,omitempty"`
	LikesCount    int    `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int    `gorm:"not null;default:0" json:"comments_count"`
	// Liked and Mine are computed per viewer and never stored.
	Liked bool `gorm:"-" json:"liked"`
	Mine  bool `gorm:"-" json:"mine"`
}

func (Confession) TableName() string { return TableConfessions }

// ForViewer returns c as viewerID may see it. Nobody, the author included,
// receives the author of an anonymous confession.
func (c Confession) ForViewer(viewerID string) Confession {
	c.Mine = viewerID != "" && c.UserID == viewerID
	if c.IsAnonymous {
		c.UserID, c.AuthorName = "", ""
	}
	return c
}

// ConfessionComment is a reply under a confession.
type ConfessionComment struct {
	Record
	ConfessionID string `gorm:"size:36;not null;index" json:"confession_id"`
	UserID       string `gorm:"size:36;not null;index" json:"user_id,omitempty"`
	Content      string `gorm:"type:text;not null" json:"content"`
	AuthorName   string `json:"author_name,omitempty"`
	// ByAuthor marks a reply by the author of an anonymous confession.
	ByAuthor bool `gorm:"-" json:"by_author"`
	Mine     bool `gorm:"-" json:"mine"`
}

func (ConfessionComment) TableName() string { return TableConfessionComments }

// ForViewer returns cm as viewerID may see it under parent. Commenters keep
// their display name but never their id, and the author of an anonymous
// confession stays anonymous in its thread.
func (cm ConfessionComment) ForViewer(viewerID string, parent *Confession) ConfessionComment {
	cm.Mine = viewerID != "" && cm.UserID == viewerID
	if parent != nil && parent.IsAnonymous && cm.UserID == parent.UserID {
		cm.ByAuthor, cm.AuthorName = true, ""
	}
	cm.UserID = ""
	return cm
}

// ConfessionLike records that a user liked a confession.
type ConfessionLike struct {
	Record
	ConfessionID string `gorm:"size:36;not null;uniqueIndex:idx_confession_like" json:"confession_id"`
	UserID       string `gorm:"size:36;not null;uniqueIndex:idx_confession_like" json:"user_id"`
}

func (ConfessionLike) TableName() string { return TableConfessionLikes }

// MarketplaceListing is an item offered for sale.
type MarketplaceListing struct {
	Record
	CampusScoped
	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Price       float64  `gorm:"not null" json:"price"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Contact     string   `json:"contact"`
	ImageURLs   []string `gorm:"serializer:json" json:"image_urls"`
}

func (MarketplaceListing) TableName() string { return TableMarketplace }

// Event is a dated campus happening.
type Event struct {
	Record
	CampusScoped
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `gorm:"index" json:"starts_at"`
	ImageURL    string    `json:"image_url"`
}

func (Event) TableName() string { return TableEvents }

// FoodItem is a meal or snack offered on campus.
type FoodItem struct {
	Record
	CampusScoped
	Name        string  `gorm:"not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `json:"price"`
	Vendor      string  `json:"vendor"`
	Location    string  `json:"location"`
	ImageURL    string  `json:"image_url"`
}

func (FoodItem) TableName() string { return TableFood }

// Note is a shared study document.
type Note struct {
	Record
	CampusScoped
	Title       string `gorm:"not null" json:"title"`
	Course      string `gorm:"index" json:"course"`
	Description string `gorm:"type:text" json:"description"`
	FileURL     string `gorm:"not null" json:"file_url"`
	FileName    string `json:"file_name"`
}

func (Note) TableName() string { return TableNotes }

// RoommatePost advertises a room or looks for a roommate.
type RoommatePost struct {
	Record
	CampusScoped
	Title            string     `gorm:"not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	Budget           float64    `json:"budget"`
	Location         string     `json:"location"`
	MoveInDate       *time.Time `json:"move_in_date,omitempty"`
	GenderPreference string     `json:"gender_preference"`
	Contact          string     `json:"contact"`
}

func (RoommatePost) TableName() string { return TableRoommates }

var rowFactories = map[string]func() any{
	TableProfiles:           func() any { return &Profile{} },
	TableCampuses:           func() any { return &Campus{} },
	TableConfessions:        func() any { return &Confession{} },
	TableConfessionComments: func() any { return &ConfessionComment{} },
	TableConfessionLikes:    func() any { return &ConfessionLike{} },
	TableMarketplace:        func() any { return &MarketplaceListing{} },
	TableEvents:             func() any { return &Event{} },
	TableFood:               func() any { return &FoodItem{} },
	TableNotes:              func() any { return &Note{} },
	TableRoommates:          func() any { return &RoommatePost{} },
	TableNotifications:      func() any { return &Notification{} },
}

// NewRow returns a zero model for table, or false for an unknown table.
func NewRow(table string) (any, bool) {
	f, ok := rowFactories[table]
	if !ok {
		return nil, false
	}
	return f(), true
}

// AllModels returns one zero value per collection, for migrations.
func AllModels() []any {
	out := make([]any, 0, len(Tables))
	for _, t := range Tables {
		row, _ := NewRow(t)
		out = append(out, row)
	}
	return out
}
