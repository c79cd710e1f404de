package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// readFarmers parses a farmer export with columns
// id,name,phone,village,notes. Only name is required; a blank id gets a UUID.
func readFarmers(r io.Reader) (farmers []domain.Farmer, skipped int, err error) {
	err = eachRecord(r, []string{"name"}, func(line int, get func(string) string) {
		name := get("name")
		if name == "" {
			slog.Warn("skipping farmer without name", "line", line)
			skipped++
			return
		}
		id := get("id")
		if id == "" {
			id = uuid.NewString()
		}
		farmers = append(farmers, domain.Farmer{
			ID:      id,
			Name:    name,
			Phone:   get("phone"),
			Village: get("village"),
			Notes:   get("notes"),
		})
	})
	return farmers, skipped, err
}

// readFarms parses a farm export with columns
// id,farmer_id,name,address,lat,lon,flock_size. lat and lon may both be
// blank for farms that were never surveyed.
func readFarms(r io.Reader) (farms []domain.Farm, skipped int, err error) {
	err = eachRecord(r, []string{"farmer_id", "name"}, func(line int, get func(string) string) {
		farm := domain.Farm{
			ID:       get("id"),
			FarmerID: get("farmer_id"),
			Name:     get("name"),
			Address:  get("address"),
		}
		if farm.FarmerID == "" || farm.Name == "" {
			slog.Warn("skipping farm without farmer_id or name", "line", line)
			skipped++
			return
		}
		if farm.ID == "" {
			farm.ID = uuid.NewString()
		}
		if !domain.ValidID(farm.ID) {
			slog.Warn("skipping farm with invalid id", "line", line, "id", farm.ID)
			skipped++
			return
		}

		loc, err := parseLocation(get("lat"), get("lon"))
		if err != nil {
			slog.Warn("skipping farm with bad coordinates", "line", line, "error", err)
			skipped++
			return
		}
		farm.Location = loc

		if s := get("flock_size"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				slog.Warn("skipping farm with bad flock_size", "line", line, "value", s)
				skipped++
				return
			}
			farm.FlockSize = n
		}
		farms = append(farms, farm)
	})
	return farms, skipped, err
}

func parseLocation(latS, lonS string) (*domain.GeoPoint, error) {
	if latS == "" && lonS == "" {
		return nil, nil
	}
	if latS == "" || lonS == "" {
		return nil, errors.New("lat and lon must both be set")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return nil, fmt.Errorf("lon: %w", err)
	}
	p := &domain.GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil, fmt.Errorf("out of range: %v, %v", lat, lon)
	}
	return p, nil
}

// eachRecord reads a headered CSV and calls fn per data row. Rows the CSV
// reader rejects are logged and skipped.
func eachRecord(r io.Reader, required []string, fn func(line int, get func(string) string)) error {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			slog.Warn("skipping unreadable row", "line", line, "error", err)
			continue
		}
		fn(line, func(name string) string { return getField(record, cols, name) })
	}
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
