package registry

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// SuccessResultCode is the envelope result code of a successful call.
const SuccessResultCode = "00"

// DefaultRegionCode is sent when no region filter is given; the registry
// rejects unconstrained nationwide queries.
const DefaultRegionCode = "110000"

// FlexString holds a scalar field that the registry sends either as a JSON
// string or as a JSON number. Numbers keep their literal text.
type FlexString struct {
	Value string
	Valid bool
}

// UnmarshalJSON branches on the token kind. Objects and arrays leave the
// field invalid instead of failing the surrounding item.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch c := data[0]; {
	case c == 'n':
		return nil
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		f.Value, f.Valid = s, true
	case c == '-' || (c >= '0' && c <= '9'):
		f.Value, f.Valid = string(data), true
	case c == 't' || c == 'f':
		f.Value, f.Valid = string(data), true
	}
	return nil
}

// MarshalJSON writes the value back as a string, or null when invalid.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Int parses the value as an integer, returning ok=false when absent or
// unparsable.
func (f FlexString) Int() (int, bool) {
	if !f.Valid {
		return 0, false
	}
	n, err := strconv.Atoi(f.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Str returns a FlexString holding s, for building fixtures.
func Str(s string) FlexString {
	return FlexString{Value: s, Valid: true}
}

// RawItem is one facility entry as sent by the registry, before coercion.
type RawItem struct {
	PublicCode         FlexString `json:"ykiho"`
	Name               FlexString `json:"yadmNm"`
	ClassCode          FlexString `json:"clCd"`
	ClassName          FlexString `json:"clCdNm"`
	RegionCode         FlexString `json:"sidoCd"`
	RegionName         FlexString `json:"sidoCdNm"`
	DistrictCode       FlexString `json:"sgguCd"`
	DistrictName       FlexString `json:"sgguCdNm"`
	Neighborhood       FlexString `json:"emdongNm"`
	PostalCode         FlexString `json:"postNo"`
	Address            FlexString `json:"addr"`
	Phone              FlexString `json:"telno"`
	Homepage           FlexString `json:"hospUrl"`
	XPos               FlexString `json:"XPos"`
	YPos               FlexString `json:"YPos"`
	Distance           FlexString `json:"distance"`
	DoctorTotal        FlexString `json:"drTotCnt"`
	EstablishedDate    FlexString `json:"estbDd"`
	MedicalSpecialist  FlexString `json:"mdeptSdrCnt"`
	MedicalGeneral     FlexString `json:"mdeptGdrCnt"`
	MedicalIntern      FlexString `json:"mdeptIntnCnt"`
	MedicalResident    FlexString `json:"mdeptResdntCnt"`
	DentalSpecialist   FlexString `json:"detySdrCnt"`
	OrientalSpecialist FlexString `json:"cmdcSdrCnt"`
}

// Filters narrows a registry page request. Zero values are omitted.
type Filters struct {
	RegionCode   string
	DistrictCode string
	Neighborhood string
	Name         string
	Longitude    *float64
	Latitude     *float64
	RadiusMeters int
}

// Page is a decoded registry response.
type Page struct {
	ResultCode string
	ResultMsg  string
	PageNo     int
	NumOfRows  int
	TotalCount int
	Items      []RawItem
}

// Success reports whether the envelope carried the success result code.
func (p *Page) Success() bool {
	return p.ResultCode == SuccessResultCode
}

// RawResponse is the undecoded result of a debug call.
type RawResponse struct {
	KeyConfigured bool   `json:"keyConfigured"`
	StatusCode    int    `json:"statusCode,omitempty"`
	Body          string `json:"body,omitempty"`
	Error         string `json:"error,omitempty"`
}

type envelope struct {
	Response struct {
		Header struct {
			ResultCode FlexString `json:"resultCode"`
			ResultMsg  FlexString `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      json.RawMessage `json:"items"`
			NumOfRows  FlexString      `json:"numOfRows"`
			PageNo     FlexString      `json:"pageNo"`
			TotalCount FlexString      `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}
