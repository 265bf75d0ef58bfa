package domain

import (
	"fmt"
	"strings"
	"time"
)

// Canonical status values. Anything the portal publishes that is not a
// case-insensitive "closed" is treated as open.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// San Diego bounding box. Coordinates outside these bounds are geographic
// outliers (bad geocodes, test rows) and are excluded from map artifacts.
const (
	SDLatMin = 32.5
	SDLatMax = 33.3
	SDLngMin = -117.7
	SDLngMax = -116.8
)

// RawRow is one row of a Get It Done CSV export, columns as published by the
// data dictionary. Everything stays a string; the DuckDB build does the type
// coercion so schema drift in one year's export cannot break parsing of the rest.
type RawRow struct {
	ServiceRequestID       string `csv:"service_request_id"`
	ServiceRequestParentID string `csv:"service_request_parent_id"`
	SAPNotificationNumber  string `csv:"sap_notification_number"`
	DateRequested          string `csv:"date_requested"`
	CaseAgeDays            string `csv:"case_age_days"`
	CaseRecordType         string `csv:"case_record_type"`
	ServiceName            string `csv:"service_name"`
	ServiceNameDetail      string `csv:"service_name_detail"`
	DateClosed             string `csv:"date_closed"`
	Status                 string `csv:"status"`
	Lat                    string `csv:"lat"`
	Lng                    string `csv:"lng"`
	StreetAddress          string `csv:"street_address"`
	Zipcode                string `csv:"zipcode"`
	CouncilDistrict        string `csv:"council_district"`
	CommPlanCode           string `csv:"comm_plan_code"`
	CommPlanName           string `csv:"comm_plan_name"`
	ParkName               string `csv:"park_name"`
	CaseOrigin             string `csv:"case_origin"`
	Referred               string `csv:"referred"`
	IAMFloc                string `csv:"iamfloc"`
	Floc                   string `csv:"floc"`
	PublicDescription      string `csv:"public_description"`
}

// ServiceRequest is one row of the canonical table after cleaning and
// deduplication. Pointer fields are nullable in the parquet schema.
type ServiceRequest struct {
	ServiceRequestID string     `json:"service_request_id"`
	DateRequested    time.Time  `json:"date_requested"`
	DateClosed       *time.Time `json:"date_closed,omitempty"`
	Status           string     `json:"status"`
	ServiceName      string     `json:"service_name"`
	CaseOrigin       string     `json:"case_origin,omitempty"`

	Lat             *float64 `json:"lat,omitempty"`
	Lng             *float64 `json:"lng,omitempty"`
	CouncilDistrict *int     `json:"council_district,omitempty"`
	CommPlanName    string   `json:"comm_plan_name,omitempty"`
	Zipcode         string   `json:"zipcode,omitempty"`

	ResolutionDays    *int      `json:"resolution_days,omitempty"`
	RequestYear       int       `json:"request_year"`
	RequestMonth      int       `json:"request_month"`
	RequestQuarter    int       `json:"request_quarter"`
	RequestDow        int       `json:"request_dow"` // 0=Sunday .. 6=Saturday
	RequestHour       int       `json:"request_hour"`
	RequestMonthStart time.Time `json:"request_month_start"`

	SourceFile string `json:"source_file"`
}

// Resolved reports whether the request carries a resolution duration.
func (r *ServiceRequest) Resolved() bool {
	return r.ResolutionDays != nil
}

// NormalizeStatus collapses a portal status value to StatusOpen or StatusClosed.
func NormalizeStatus(status string) string {
	if strings.EqualFold(strings.TrimSpace(status), "closed") {
		return StatusClosed
	}
	return StatusOpen
}

// ChannelFor buckets a case_origin value into a submission channel.
func ChannelFor(caseOrigin string) string {
	switch strings.TrimSpace(caseOrigin) {
	case "Mobile":
		return "Mobile App"
	case "Web":
		return "Web"
	case "Phone":
		return "Phone"
	default:
		return "Other"
	}
}

// InSanDiegoBounds reports whether a coordinate falls inside the city bounding box.
func InSanDiegoBounds(lat, lng float64) bool {
	return lat >= SDLatMin && lat <= SDLatMax && lng >= SDLngMin && lng <= SDLngMax
}

// districtLabels are the sidebar labels for the nine council districts.
var districtLabels = map[int]string{
	1: "D1 - Pacific Beach, La Jolla",
	2: "D2 - Clairemont, Peninsula, OB",
	3: "D3 - Downtown, Uptown, North Park",
	4: "D4 - Encanto, Skyline-Paradise Hills",
	5: "D5 - Rancho Bernardo, Penasquitos",
	6: "D6 - Mira Mesa, Kearny Mesa",
	7: "D7 - Navajo, Linda Vista, Serra Mesa",
	8: "D8 - SE San Diego, Otay Mesa-Nestor",
	9: "D9 - City Heights, Mid-City",
}

// DistrictLabel returns the display label for a council district.
func DistrictLabel(district int) string {
	if label, ok := districtLabels[district]; ok {
		return label
	}
	return fmt.Sprintf("District %d", district)
}
