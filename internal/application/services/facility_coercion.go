package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/pkg/geo"
)

const establishedDateLayout = "20060102"

// CoerceItem converts one registry item into a Facility. Unusable fields
// become nil; ok is false when the item has no public code or no name.
// ID and timestamps are left for the caller to assign.
func CoerceItem(item registry.RawItem) (entities.Facility, bool) {
	code := requiredString(item.PublicCode, entities.MaxPublicCodeLength)
	name := requiredString(item.Name, entities.MaxNameLength)
	if code == "" || name == "" {
		return entities.Facility{}, false
	}

	f := entities.Facility{
		PublicCode:     code,
		Name:           name,
		Address:        optionalString(item.Address, entities.MaxAddressLength),
		Phone:          optionalString(item.Phone, entities.MaxPhoneLength),
		Department:     optionalString(item.ClassName, entities.MaxDepartmentLength),
		DepartmentCode: optionalString(item.ClassCode, entities.MaxDepartmentCodeLength),

		DoctorTotalCount:        coerceInt(item.DoctorTotal),
		MedicalSpecialistCount:  coerceInt(item.MedicalSpecialist),
		MedicalGeneralCount:     coerceInt(item.MedicalGeneral),
		MedicalInternCount:      coerceInt(item.MedicalIntern),
		MedicalResidentCount:    coerceInt(item.MedicalResident),
		DentalSpecialistCount:   coerceInt(item.DentalSpecialist),
		OrientalSpecialistCount: coerceInt(item.OrientalSpecialist),
		EstablishedDate:         coerceDate(item.EstablishedDate),

		RegionCode:   optionalString(item.RegionCode, entities.MaxRegionCodeLength),
		RegionName:   optionalString(item.RegionName, entities.MaxRegionNameLength),
		DistrictCode: optionalString(item.DistrictCode, entities.MaxRegionCodeLength),
		DistrictName: optionalString(item.DistrictName, entities.MaxRegionNameLength),
		Neighborhood: optionalString(item.Neighborhood, entities.MaxNeighborhoodLength),
		PostalCode:   optionalString(item.PostalCode, entities.MaxPostalCodeLength),
		Homepage:     optionalString(item.Homepage, entities.MaxHomepageLength),
	}

	// XPos is longitude, YPos is latitude.
	lon, lat := coerceFloat(item.XPos), coerceFloat(item.YPos)
	if lat != nil && lon != nil && geo.ValidCoordinate(*lat, *lon) {
		f.Latitude, f.Longitude = lat, lon
	}
	return f, true
}

// CoerceItems coerces a page of items, dropping unusable ones. dropped is the
// number of items without a public code or name.
func CoerceItems(items []registry.RawItem) (facilities []entities.Facility, dropped int) {
	facilities = make([]entities.Facility, 0, len(items))
	for _, item := range items {
		f, ok := CoerceItem(item)
		if !ok {
			dropped++
			continue
		}
		facilities = append(facilities, f)
	}
	return facilities, dropped
}

func requiredString(v registry.FlexString, limit int) string {
	if !v.Valid {
		return ""
	}
	return truncateRunes(strings.TrimSpace(v.Value), limit)
}

func optionalString(v registry.FlexString, limit int) *string {
	s := requiredString(v, limit)
	if s == "" {
		return nil
	}
	return &s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func coerceFloat(v registry.FlexString) *float64 {
	if !v.Valid {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return nil
	}
	return &f
}

// coerceInt accepts integer text, or float text truncated toward zero.
// Values outside the INTEGER column range become nil.
func coerceInt(v registry.FlexString) *int {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.Value)
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		v := int(n)
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f > maxInt || f < minInt {
		return nil
	}
	n := int(f)
	return &n
}

// Counts are stored as INTEGER.
const (
	maxInt = float64(math.MaxInt32)
	minInt = float64(math.MinInt32)
)

func coerceDate(v registry.FlexString) *time.Time {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.Value)
	if len(s) != len(establishedDateLayout) {
		return nil
	}
	t, err := time.Parse(establishedDateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
