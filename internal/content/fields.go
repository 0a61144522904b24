package content

import "github.com/brayobiz/campus-hub-sub000/internal/postform"

// MaxListingImages caps the photos of a marketplace listing.
const MaxListingImages = 5

// NoteAccept lists the document types a note may carry.
var NoteAccept = []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".txt", "image/"}

var imageAccept = []string{"image/"}

func anonymousToggle(value string) any {
	return map[string]any{"type": "checkbox", "checked": value != "false"}
}

var fieldSets = map[Domain][]postform.Field{
	Confessions: {
		{Name: "content", Label: "Confession", Kind: postform.KindTextarea, Required: true, Placeholder: "What's on your mind?"},
		{Name: "anonymous", Label: "Post anonymously", Kind: postform.KindCustom, Render: anonymousToggle},
	},
	Marketplace: {
		{Name: "title", Label: "Title", Kind: postform.KindText, Required: true},
		{Name: "description", Label: "Description", Kind: postform.KindTextarea},
		{Name: "price", Label: "Price (KES)", Kind: postform.KindNumber, Required: true},
		{Name: "category", Label: "Category", Kind: postform.KindText},
		{Name: "condition", Label: "Condition", Kind: postform.KindText},
		{Name: "contact", Label: "Contact", Kind: postform.KindText},
		{Name: "images", Label: "Photos", Kind: postform.KindFile, Multiple: true, Accept: imageAccept},
	},
	Events: {
		{Name: "title", Label: "Event title", Kind: postform.KindText, Required: true},
		{Name: "description", Label: "Description", Kind: postform.KindTextarea},
		{Name: "location", Label: "Venue", Kind: postform.KindText},
		{Name: "starts_at", Label: "Date and time", Kind: postform.KindDate, Required: true},
		{Name: "image", Label: "Poster", Kind: postform.KindFile, Accept: imageAccept},
	},
	Food: {
		{Name: "name", Label: "Dish", Kind: postform.KindText, Required: true},
		{Name: "description", Label: "Description", Kind: postform.KindTextarea},
		{Name: "price", Label: "Price (KES)", Kind: postform.KindNumber, Required: true},
		{Name: "vendor", Label: "Vendor", Kind: postform.KindText},
		{Name: "location", Label: "Location", Kind: postform.KindText},
		{Name: "image", Label: "Photo", Kind: postform.KindFile, Accept: imageAccept},
	},
	Notes: {
		{Name: "title", Label: "Title", Kind: postform.KindText, Required: true},
		{Name: "course", Label: "Course code", Kind: postform.KindText},
		{Name: "description", Label: "Description", Kind: postform.KindTextarea},
		{Name: "file", Label: "File", Kind: postform.KindFile, Required: true, Accept: NoteAccept},
	},
	Roommates: {
		{Name: "title", Label: "Title", Kind: postform.KindText, Required: true},
		{Name: "description", Label: "Description", Kind: postform.KindTextarea},
		{Name: "budget", Label: "Monthly budget (KES)", Kind: postform.KindNumber},
		{Name: "location", Label: "Area", Kind: postform.KindText},
		{Name: "move_in_date", Label: "Move-in date", Kind: postform.KindDate},
		{Name: "gender_preference", Label: "Gender preference", Kind: postform.KindText},
		{Name: "contact", Label: "Contact", Kind: postform.KindText},
	},
}

// Fields returns the form descriptors of d.
func Fields(d Domain) []postform.Field {
	return fieldSets[d]
}
