package repository

import (
	"context"
	"sort"

	"fieldserve/internal/domain"
	"fieldserve/pkg/location"

	"gorm.io/gorm"
)

// WorkerSearchFilter for proximity search. SectionID narrows to workers offering that section.
type WorkerSearchFilter struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	SectionID *uint
	Limit     int
}

type WorkerMatch struct {
	WorkerID       uint    `json:"worker_id"`
	DisplayName    string  `json:"display_name"`
	AverageRating  float64 `json:"average_rating"`
	RatingCount    int     `json:"rating_count"`
	DistanceMeters float64 `json:"distance_meters"`
	BasePriceCents *int64  `json:"base_price_cents,omitempty"`
	Unit           string  `json:"unit,omitempty"`
}

// DiscoveryRepository performs location-based worker search.
type DiscoveryRepository struct {
	db *gorm.DB
}

func NewDiscoveryRepository(db *gorm.DB) *DiscoveryRepository {
	return &DiscoveryRepository{db: db}
}

// SearchWorkers returns verified, active workers within radius, nearest first.
// A bounding box narrows rows in SQL; the exact Haversine cut happens here.
func (r *DiscoveryRepository) SearchWorkers(ctx context.Context, f WorkerSearchFilter) ([]WorkerMatch, error) {
	box := location.BoundingBox(f.Latitude, f.Longitude, f.RadiusKm)

	query := r.db.WithContext(ctx).Table("worker_profiles wp").
		Joins("INNER JOIN users u ON u.id = wp.user_id AND u.deleted_at IS NULL").
		Joins("INNER JOIN worker_locations wl ON wl.user_id = u.id AND wl.deleted_at IS NULL").
		Where("wp.deleted_at IS NULL AND wp.is_active = ? AND wp.is_verified = ?", true, true).
		Where("u.role = ? AND u.is_active = ?", domain.RoleWorker, true).
		Where("wl.latitude BETWEEN ? AND ?", box.LatMin, box.LatMax)

	spans := box.LngRanges()
	lng := r.db.Where("wl.longitude BETWEEN ? AND ?", spans[0][0], spans[0][1])
	for _, span := range spans[1:] {
		lng = lng.Or("wl.longitude BETWEEN ? AND ?", span[0], span[1])
	}
	query = query.Where(lng)

	if f.SectionID != nil {
		query = query.
			Select("wp.user_id, wp.display_name, wp.average_rating, wp.rating_count, wl.latitude, wl.longitude, ws.base_price_cents, ws.unit").
			Joins("INNER JOIN worker_services ws ON ws.worker_id = u.id AND ws.section_id = ? AND ws.is_active = ? AND ws.deleted_at IS NULL", *f.SectionID, true)
	} else {
		query = query.Select("wp.user_id, wp.display_name, wp.average_rating, wp.rating_count, wl.latitude, wl.longitude")
	}

	var rows []struct {
		UserID         uint
		DisplayName    string
		AverageRating  float64
		RatingCount    int
		Latitude       float64
		Longitude      float64
		BasePriceCents *int64
		Unit           *string
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	radiusM := f.RadiusKm * 1000
	results := make([]WorkerMatch, 0, len(rows))
	for _, row := range rows {
		dist := location.HaversineMeters(f.Latitude, f.Longitude, row.Latitude, row.Longitude)
		if dist > radiusM {
			continue
		}
		m := WorkerMatch{
			WorkerID:       row.UserID,
			DisplayName:    row.DisplayName,
			AverageRating:  row.AverageRating,
			RatingCount:    row.RatingCount,
			DistanceMeters: dist,
			BasePriceCents: row.BasePriceCents,
		}
		if row.Unit != nil {
			m.Unit = *row.Unit
		}
		results = append(results, m)
	}
	sortByDistance(results)
	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}
	return results, nil
}

func sortByDistance(r []WorkerMatch) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].DistanceMeters != r[j].DistanceMeters {
			return r[i].DistanceMeters < r[j].DistanceMeters
		}
		return r[i].WorkerID < r[j].WorkerID
	})
}
