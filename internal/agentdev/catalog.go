package agentdev

import (
	"sort"
	"strings"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// Tour is a catalog entry with the lowercase keywords that select it.
type Tour struct {
	model.TourPackage
	Keywords []string
}

// Catalog matches user text against a fixed tour list.
type Catalog struct {
	tours []Tour
}

// NewCatalog creates a catalog.
func NewCatalog(tours []Tour) *Catalog {
	return &Catalog{tours: tours}
}

// Match returns up to limit tours whose keywords occur in text, best first.
// Ties keep catalog order.
func (c *Catalog) Match(text string, limit int) []model.TourPackage {
	text = strings.ToLower(text)

	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, t := range c.tours {
		score := 0
		for _, kw := range t.Keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.TourPackage, 0, len(hits))
	for _, h := range hits {
		out = append(out, c.tours[h.idx].TourPackage)
	}
	return out
}

// DefaultCatalog is a small set of domestic tours.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Tour{
		{
			TourPackage: model.TourPackage{
				ID: "tour-dalat-3n2d", Name: "Đà Lạt Ngàn Hoa 3N2Đ", Destination: "Đà Lạt",
				Price: 3490000, Currency: "VND", DurationDays: 3, Rating: 4.7,
				URL: "/tours/tour-dalat-3n2d",
			},
			Keywords: []string{"đà lạt", "da lat", "dalat", "lâm đồng"},
		},
		{
			TourPackage: model.TourPackage{
				ID: "tour-halong-2n1d", Name: "Du thuyền Hạ Long 2N1Đ", Destination: "Hạ Long",
				Price: 4590000, Currency: "VND", DurationDays: 2, Rating: 4.8,
				URL: "/tours/tour-halong-2n1d",
			},
			Keywords: []string{"hạ long", "ha long", "halong", "du thuyền", "quảng ninh"},
		},
		{
			TourPackage: model.TourPackage{
				ID: "tour-phuquoc-4n3d", Name: "Phú Quốc Biển Xanh 4N3Đ", Destination: "Phú Quốc",
				Price: 6990000, Currency: "VND", DurationDays: 4, Rating: 4.6,
				URL: "/tours/tour-phuquoc-4n3d",
			},
			Keywords: []string{"phú quốc", "phu quoc", "biển", "đảo"},
		},
		{
			TourPackage: model.TourPackage{
				ID: "tour-sapa-3n2d", Name: "Sapa Mùa Lúa Chín 3N2Đ", Destination: "Sa Pa",
				Price: 2990000, Currency: "VND", DurationDays: 3, Rating: 4.5,
				URL: "/tours/tour-sapa-3n2d",
			},
			Keywords: []string{"sapa", "sa pa", "fansipan", "lào cai", "núi"},
		},
		{
			TourPackage: model.TourPackage{
				ID: "tour-hoian-3n2d", Name: "Đà Nẵng Hội An 3N2Đ", Destination: "Hội An",
				Price: 4290000, Currency: "VND", DurationDays: 3, Rating: 4.8,
				URL: "/tours/tour-hoian-3n2d",
			},
			Keywords: []string{"hội an", "hoi an", "đà nẵng", "da nang", "bà nà", "phố cổ"},
		},
		{
			TourPackage: model.TourPackage{
				ID: "tour-mientay-2n1d", Name: "Miền Tây Sông Nước 2N1Đ", Destination: "Cần Thơ",
				Price: 1890000, Currency: "VND", DurationDays: 2, Rating: 4.4,
				URL: "/tours/tour-mientay-2n1d",
			},
			Keywords: []string{"miền tây", "mien tay", "cần thơ", "can tho", "chợ nổi", "mekong"},
		},
	})
}
