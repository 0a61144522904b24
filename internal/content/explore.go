package content

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
)

// Tile is one domain on the explore screen.
type Tile struct {
	Domain Domain `json:"domain"`
	Count  int64  `json:"count"`
	Feed   string `json:"feed"`
	Post   string `json:"post"`
}

// Explore counts the posts of every domain on campusID, in menu order.
func (s *Service) Explore(ctx context.Context, campusID string) ([]Tile, error) {
	tiles := make([]Tile, 0, len(Domains))
	for _, d := range Domains {
		n, err := s.tables.Count(ctx, d.Table(), backend.Eq("campus_id", campusID))
		if err != nil {
			return nil, backend.Wrap(err)
		}
		tiles = append(tiles, Tile{
			Domain: d,
			Count:  n,
			Feed:   "/feeds/" + string(d),
			Post:   "/post/" + string(d),
		})
	}
	return tiles, nil
}
