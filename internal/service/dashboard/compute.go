package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

const (
	// OverdueAfter is how long a farmer may go without a visit.
	OverdueAfter = 7 * 24 * time.Hour
	// AttentionLimit caps the attention list.
	AttentionLimit = 5
)

// Attention is a farmer that is overdue for a visit and owes money.
type Attention struct {
	FarmerID       string  `json:"farmerId"`
	Name           string  `json:"name"`
	Village        string  `json:"village,omitempty"`
	TotalDue       float64 `json:"totalDue"`
	LastVisitDate  string  `json:"lastVisitDate,omitempty"`
	DaysSinceVisit int     `json:"daysSinceVisit,omitempty"`
	NeverVisited   bool    `json:"neverVisited"`
}

// staleness orders attention items; never-visited farmers rank first.
func (a Attention) staleness() int {
	if a.NeverVisited {
		return math.MaxInt
	}
	return a.DaysSinceVisit
}

// Summary is the admin dashboard.
type Summary struct {
	FarmerCount   int                       `json:"farmerCount"`
	TotalDue      float64                   `json:"totalDue"`
	TotalPaid     float64                   `json:"totalPaid"`
	RecentVisits  int                       `json:"recentVisits"`
	OverdueVisits int                       `json:"overdueVisits"`
	CropHealth    map[models.CropHealth]int `json:"cropHealth"`
	Attention     []Attention               `json:"attention"`
	GeneratedAt   string                    `json:"generatedAt"`
}

// Compute reduces farmers and their visits to a Summary. A farmer without a
// parseable last visit date counts as overdue.
func Compute(farmers []models.Farmer, visits []models.Visit, now time.Time) Summary {
	now = now.UTC()
	cutoff := now.Add(-OverdueAfter)

	due := lo.Reduce(farmers, func(acc decimal.Decimal, f models.Farmer, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(f.TotalDue))
	}, decimal.Zero)
	paid := lo.Reduce(farmers, func(acc decimal.Decimal, f models.Farmer, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(f.TotalPaid))
	}, decimal.Zero)

	s := Summary{
		FarmerCount: len(farmers),
		TotalDue:    due.InexactFloat64(),
		TotalPaid:   paid.InexactFloat64(),
		CropHealth:  make(map[models.CropHealth]int, len(models.CropHealthLevels)),
		Attention:   []Attention{},
		GeneratedAt: docstore.FormatTime(now),
	}
	for _, level := range models.CropHealthLevels {
		s.CropHealth[level] = 0
	}

	for _, f := range farmers {
		last := lastVisit(f)
		if !last.IsZero() && !last.Before(cutoff) {
			s.RecentVisits++
			continue
		}
		s.OverdueVisits++
		if f.TotalDue <= 0 {
			continue
		}

		item := Attention{
			FarmerID:      f.ID,
			Name:          f.Name,
			Village:       f.Village,
			TotalDue:      f.TotalDue,
			LastVisitDate: f.LastVisitDate,
			NeverVisited:  last.IsZero(),
		}
		if !item.NeverVisited {
			item.DaysSinceVisit = int(now.Sub(last) / (24 * time.Hour))
		}
		s.Attention = append(s.Attention, item)
	}

	for _, v := range visits {
		if v.CropHealth.Valid() {
			s.CropHealth[v.CropHealth]++
		}
	}

	sort.SliceStable(s.Attention, func(i, j int) bool {
		a, b := s.Attention[i], s.Attention[j]
		if a.staleness() != b.staleness() {
			return a.staleness() > b.staleness()
		}
		if a.TotalDue != b.TotalDue {
			return a.TotalDue > b.TotalDue
		}
		return a.FarmerID < b.FarmerID
	})
	if len(s.Attention) > AttentionLimit {
		s.Attention = s.Attention[:AttentionLimit]
	}
	return s
}

func lastVisit(f models.Farmer) time.Time {
	if f.LastVisitDate == "" {
		return time.Time{}
	}
	t, err := docstore.ParseTime(f.LastVisitDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
