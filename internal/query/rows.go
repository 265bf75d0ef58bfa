package query

// Result row types for the dashboard views. Pointer fields are NULL-able
// measures: a slice with no resolved requests has no median to report.

// Summary is the KPI row at the top of the overview tab.
type Summary struct {
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	CloseRatePct         float64  `json:"close_rate_pct"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
}

// MonthlyPoint is one month of the filtered time series.
type MonthlyPoint struct {
	Month                string   `json:"month"` // YYYY-MM-DD, first of month
	TotalRequests        int64    `json:"total_requests"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
}

// MapPoint is one sampled report location for the density map.
type MapPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ProblemRow is one service in the filtered problem-type breakdown.
type ProblemRow struct {
	ServiceName          string   `json:"service_name"`
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	AvgResolutionDays    *float64 `json:"avg_resolution_days"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
	CloseRatePct         float64  `json:"close_rate_pct"`
}

// FilterOptions are the valid sidebar values, derived from the aggregation
// artifacts.
type FilterOptions struct {
	ServiceNames     []string `json:"service_names"`
	CouncilDistricts []int    `json:"council_districts"`
	Neighborhoods    []string `json:"neighborhoods"`
	Years            []int    `json:"years"`
}

// Overview is the dataset-wide KPI set from the precomputed rollups.
type Overview struct {
	TotalRequests        int64   `json:"total_requests"`
	ClosedRequests       int64   `json:"closed_requests"`
	CloseRatePct         float64 `json:"close_rate_pct"`
	MedianResolutionDays float64 `json:"median_resolution_days"`
}

// ProblemType is one row of the top-problem-types rollup.
type ProblemType struct {
	ServiceName          string   `json:"service_name"`
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	OpenRequests         int64    `json:"open_requests"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
	CloseRatePct         float64  `json:"close_rate_pct"`
}

// NeighborhoodResponse is one row of the equity-by-neighborhood rollup.
type NeighborhoodResponse struct {
	CommPlanName         string   `json:"comm_plan_name"`
	CouncilDistrict      *int     `json:"council_district"`
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
	P90ResolutionDays    *float64 `json:"p90_resolution_days"`
	CloseRatePct         float64  `json:"close_rate_pct"`
}

// DistrictResolution is one council district's resolution metrics.
type DistrictResolution struct {
	CouncilDistrict      int      `json:"council_district"`
	Label                string   `json:"label"`
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	AvgResolutionDays    *float64 `json:"avg_resolution_days"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
	CloseRatePct         float64  `json:"close_rate_pct"`
}

// MonthlyTrend is one row of the monthly-trends rollup.
type MonthlyTrend struct {
	Month                string   `json:"month"`
	TotalRequests        int64    `json:"total_requests"`
	ClosedRequests       int64    `json:"closed_requests"`
	AvgResolutionDays    *float64 `json:"avg_resolution_days"`
	MedianResolutionDays *float64 `json:"median_resolution_days"`
}

// YearlyVolume is one row of the yearly-volume rollup.
type YearlyVolume struct {
	RequestYear    int   `json:"request_year"`
	TotalRequests  int64 `json:"total_requests"`
	ClosedRequests int64 `json:"closed_requests"`
}

// CaseOrigin is one submission channel's request count.
type CaseOrigin struct {
	Channel      string `json:"channel"`
	RequestCount int64  `json:"request_count"`
}

// DayHourPattern is one cell of the day-of-week by hour heatmap.
type DayHourPattern struct {
	RequestDow   int   `json:"request_dow"` // 0=Sunday .. 6=Saturday
	RequestHour  int   `json:"request_hour"`
	RequestCount int64 `json:"request_count"`
}
