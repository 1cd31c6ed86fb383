package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/snowsignal/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (station_id, name, latitude, longitude, elevation, country, region, role, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			country = excluded.country,
			region = excluded.region,
			role = excluded.role,
			active = excluded.active
	`, st.StationID, st.Name, st.Latitude, st.Longitude, st.Elevation, st.Country, st.Region, string(st.Role), st.Active)
	return err
}

func (s *Store) GetStation(stationID string) (*models.Station, error) {
	row := s.db.QueryRow(`
		SELECT station_id, name, latitude, longitude, elevation, country, region, role, active
		FROM stations WHERE station_id = ?
	`, stationID)

	var st models.Station
	var role string
	err := row.Scan(&st.StationID, &st.Name, &st.Latitude, &st.Longitude, &st.Elevation, &st.Country, &st.Region, &role, &st.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Role = models.StationRole(role)
	return &st, nil
}

func (s *Store) GetActiveStations() ([]models.Station, error) {
	return s.queryStations(`SELECT station_id, name, latitude, longitude, elevation, country, region, role, active FROM stations WHERE active = TRUE ORDER BY station_id`)
}

func (s *Store) GetStationsByRole(role models.StationRole) ([]models.Station, error) {
	return s.queryStations(`SELECT station_id, name, latitude, longitude, elevation, country, region, role, active FROM stations WHERE role = ? AND active = TRUE ORDER BY station_id`, string(role))
}

func (s *Store) queryStations(query string, args ...any) ([]models.Station, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		var role string
		if err := rows.Scan(&st.StationID, &st.Name, &st.Latitude, &st.Longitude, &st.Elevation, &st.Country, &st.Region, &role, &st.Active); err != nil {
			return nil, err
		}
		st.Role = models.StationRole(role)
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// UpsertObservation writes one daily total, overwriting any existing row
// for the same (station, date). Archive sources revise recent days, so
// re-ingesting a window must converge on the corrected values.
func (s *Store) UpsertObservation(obs models.Observation) error {
	_, err := s.db.Exec(`
		INSERT INTO observations (station_id, date, snowfall_mm, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id, date) DO UPDATE SET
			snowfall_mm = excluded.snowfall_mm,
			updated_at = excluded.updated_at
	`, obs.StationID, obs.Date.Format(dateLayout), obs.SnowfallMM, time.Now().UTC())
	return err
}

func (s *Store) GetObservation(stationID string, date time.Time) (*models.Observation, error) {
	row := s.db.QueryRow(`
		SELECT station_id, date, snowfall_mm, updated_at
		FROM observations
		WHERE station_id = ? AND date = ?
	`, stationID, date.Format(dateLayout))

	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *Store) GetObservations(stationID string, start, end time.Time) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT station_id, date, snowfall_mm, updated_at
		FROM observations
		WHERE station_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, stationID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// GetDailyAmounts returns snowfall totals keyed by date string. Scoring
// treats absent days as zero activity, so a map lookup fits better than
// an ordered slice there.
func (s *Store) GetDailyAmounts(stationID string, start, end time.Time) (map[string]float64, error) {
	rows, err := s.db.Query(`
		SELECT date, snowfall_mm
		FROM observations
		WHERE station_id = ? AND date >= ? AND date <= ?
	`, stationID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	amounts := make(map[string]float64)
	for rows.Next() {
		var date string
		var mm float64
		if err := rows.Scan(&date, &mm); err != nil {
			return nil, err
		}
		amounts[date] = mm
	}
	return amounts, rows.Err()
}

func (s *Store) LatestObservationDate(stationID string) (time.Time, bool, error) {
	var dateStr sql.NullString
	err := s.db.QueryRow(`SELECT MAX(date) FROM observations WHERE station_id = ?`, stationID).Scan(&dateStr)
	if err != nil {
		return time.Time{}, false, err
	}
	if !dateStr.Valid {
		return time.Time{}, false, nil
	}
	date, err := time.Parse(dateLayout, dateStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse observation date %q: %w", dateStr.String, err)
	}
	return date, true, nil
}

func (s *Store) CountObservations(stationID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE station_id = ?`, stationID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*models.Observation, error) {
	var obs models.Observation
	var dateStr string
	if err := row.Scan(&obs.StationID, &dateStr, &obs.SnowfallMM, &obs.UpdatedAt); err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse observation date %q: %w", dateStr, err)
	}
	obs.Date = date
	return &obs, nil
}

// UpsertCorrelation caches one analyzer result for a (target, predictor)
// pair, replacing any earlier run's row for the same pair.
func (s *Store) UpsertCorrelation(targetID string, e models.PredictorEntry, computedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO predictor_correlations (target_station_id, predictor_station_id, correlation, lag_days, p_value, significant, sample_size, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_station_id, predictor_station_id) DO UPDATE SET
			correlation = excluded.correlation,
			lag_days = excluded.lag_days,
			p_value = excluded.p_value,
			significant = excluded.significant,
			sample_size = excluded.sample_size,
			computed_at = excluded.computed_at
	`, targetID, e.StationID, e.Correlation, e.LagDays, e.PValue, e.Significant, e.SampleSize, computedAt.UTC())
	return err
}

func (s *Store) GetCorrelations(targetID string) ([]models.PredictorEntry, error) {
	rows, err := s.db.Query(`
		SELECT predictor_station_id, correlation, lag_days, p_value, significant, sample_size
		FROM predictor_correlations
		WHERE target_station_id = ?
		ORDER BY ABS(correlation) DESC
	`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PredictorEntry
	for rows.Next() {
		var e models.PredictorEntry
		if err := rows.Scan(&e.StationID, &e.Correlation, &e.LagDays, &e.PValue, &e.Significant, &e.SampleSize); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
