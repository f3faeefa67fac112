package entities

import (
	"time"
)

// Column limits enforced on ingest.
const (
	MaxPublicCodeLength     = 500
	MaxNameLength           = 200
	MaxAddressLength        = 500
	MaxPhoneLength          = 20
	MaxDepartmentLength     = 100
	MaxDepartmentCodeLength = 10
	MaxRegionCodeLength     = 10
	MaxRegionNameLength     = 50
	MaxNeighborhoodLength   = 100
	MaxPostalCodeLength     = 10
	MaxHomepageLength       = 500
)

// Facility is a healthcare facility reconciled from the national registry.
// It is handled as a value: updates go through ApplyUpdate, which returns a
// new Facility and leaves the receiver untouched.
type Facility struct {
	ID         int64  `json:"id" db:"id"`
	PublicCode string `json:"publicCode" db:"public_code"`
	Name       string `json:"name" db:"name"`

	Address        *string `json:"address,omitempty" db:"address"`
	Phone          *string `json:"phone,omitempty" db:"phone"`
	Department     *string `json:"department,omitempty" db:"department"`
	DepartmentCode *string `json:"departmentCode,omitempty" db:"department_code"`

	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`

	DoctorTotalCount        *int `json:"doctorTotalCount,omitempty" db:"doctor_total_count"`
	MedicalSpecialistCount  *int `json:"medicalSpecialistCount,omitempty" db:"medical_specialist_count"`
	MedicalGeneralCount     *int `json:"medicalGeneralCount,omitempty" db:"medical_general_count"`
	MedicalInternCount      *int `json:"medicalInternCount,omitempty" db:"medical_intern_count"`
	MedicalResidentCount    *int `json:"medicalResidentCount,omitempty" db:"medical_resident_count"`
	DentalSpecialistCount   *int `json:"dentalSpecialistCount,omitempty" db:"dental_specialist_count"`
	OrientalSpecialistCount *int `json:"orientalSpecialistCount,omitempty" db:"oriental_specialist_count"`

	EstablishedDate *time.Time `json:"establishedDate,omitempty" db:"established_date"`

	RegionCode   *string `json:"regionCode,omitempty" db:"region_code"`
	RegionName   *string `json:"regionName,omitempty" db:"region_name"`
	DistrictCode *string `json:"districtCode,omitempty" db:"district_code"`
	DistrictName *string `json:"districtName,omitempty" db:"district_name"`
	Neighborhood *string `json:"neighborhood,omitempty" db:"neighborhood"`
	PostalCode   *string `json:"postalCode,omitempty" db:"postal_code"`
	Homepage     *string `json:"homepage,omitempty" db:"homepage"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasLocation reports whether both coordinates are present, which is also
// the condition for the stored point geometry to be set.
func (f Facility) HasLocation() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Clone returns a deep copy so no pointer field is shared with f.
func (f Facility) Clone() Facility {
	c := f
	c.Address = clonePtr(f.Address)
	c.Phone = clonePtr(f.Phone)
	c.Department = clonePtr(f.Department)
	c.DepartmentCode = clonePtr(f.DepartmentCode)
	c.Latitude = clonePtr(f.Latitude)
	c.Longitude = clonePtr(f.Longitude)
	c.DoctorTotalCount = clonePtr(f.DoctorTotalCount)
	c.MedicalSpecialistCount = clonePtr(f.MedicalSpecialistCount)
	c.MedicalGeneralCount = clonePtr(f.MedicalGeneralCount)
	c.MedicalInternCount = clonePtr(f.MedicalInternCount)
	c.MedicalResidentCount = clonePtr(f.MedicalResidentCount)
	c.DentalSpecialistCount = clonePtr(f.DentalSpecialistCount)
	c.OrientalSpecialistCount = clonePtr(f.OrientalSpecialistCount)
	c.EstablishedDate = clonePtr(f.EstablishedDate)
	c.RegionCode = clonePtr(f.RegionCode)
	c.RegionName = clonePtr(f.RegionName)
	c.DistrictCode = clonePtr(f.DistrictCode)
	c.DistrictName = clonePtr(f.DistrictName)
	c.Neighborhood = clonePtr(f.Neighborhood)
	c.PostalCode = clonePtr(f.PostalCode)
	c.Homepage = clonePtr(f.Homepage)
	return c
}

// ApplyUpdate returns a copy of f carrying the registry values in src.
//
// Name, address, phone, department and the coordinate pair are only
// overwritten when src carries a value; staff counts, the established date
// and the registry region fields always take src's value. ID, PublicCode and
// CreatedAt are never changed. The coordinate pair moves as a unit so the
// derived geometry stays consistent.
func (f Facility) ApplyUpdate(src Facility, now time.Time) Facility {
	out := f.Clone()

	if src.Name != "" {
		out.Name = src.Name
	}
	if src.Address != nil {
		out.Address = clonePtr(src.Address)
	}
	if src.Phone != nil {
		out.Phone = clonePtr(src.Phone)
	}
	if src.Department != nil {
		out.Department = clonePtr(src.Department)
	}
	if src.DepartmentCode != nil {
		out.DepartmentCode = clonePtr(src.DepartmentCode)
	}
	if src.HasLocation() {
		out.Latitude = clonePtr(src.Latitude)
		out.Longitude = clonePtr(src.Longitude)
	}

	out.DoctorTotalCount = clonePtr(src.DoctorTotalCount)
	out.MedicalSpecialistCount = clonePtr(src.MedicalSpecialistCount)
	out.MedicalGeneralCount = clonePtr(src.MedicalGeneralCount)
	out.MedicalInternCount = clonePtr(src.MedicalInternCount)
	out.MedicalResidentCount = clonePtr(src.MedicalResidentCount)
	out.DentalSpecialistCount = clonePtr(src.DentalSpecialistCount)
	out.OrientalSpecialistCount = clonePtr(src.OrientalSpecialistCount)
	out.EstablishedDate = clonePtr(src.EstablishedDate)

	out.RegionCode = clonePtr(src.RegionCode)
	out.RegionName = clonePtr(src.RegionName)
	out.DistrictCode = clonePtr(src.DistrictCode)
	out.DistrictName = clonePtr(src.DistrictName)
	out.Neighborhood = clonePtr(src.Neighborhood)
	out.PostalCode = clonePtr(src.PostalCode)
	out.Homepage = clonePtr(src.Homepage)

	out.UpdatedAt = now
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
