// Package domain models the City of San Diego's Get It Done 311 data.
//
// # Data Source
//
// Service requests originate from the city's open data portal
// (https://data.sandiego.gov), published as one CSV of currently-open requests
// plus one CSV of closed requests per year from 2016 onward. Roughly three
// million rows in total, covering potholes, graffiti, illegal dumping,
// streetlight outages, encampments, and 40+ other problem types.
//
// # Data Dictionary Conventions
//
// Raw CSV columns are stringly typed and may drift year to year: columns get
// added or renamed, and the transform tolerates unknowns (it errors only when
// a required column is missing). RawRow keeps every documented column as a
// string; type coercion happens inside the DuckDB build, and ServiceRequest
// documents the cleaned canonical schema.
//
// Status values:
//
//	The portal publishes a handful of workflow states ("Open", "Closed",
//	"In Process", "New", "Referred"). The canonical table collapses these to
//	exactly "closed" (case-insensitive match on Closed) or "open" (everything
//	else). Open requests carry NULL date_closed and NULL resolution_days.
//
// Submission channels:
//
//	case_origin records how a report was submitted. Values are bucketed to
//	"Mobile App", "Web", "Phone", or "Other" for the case-origin aggregation.
//
// Timestamps and derived fields:
//
//	date_requested and date_closed are local timestamps. Derived columns:
//	resolution_days (whole days between request and close, NULL if unresolved),
//	request_dow (0=Sunday..6=Saturday), request_hour, request_year/month/quarter,
//	and request_month_start (month truncation for trend series).
//
// Geography:
//
//	Coordinates outside the city bounding box (lat 32.5 to 33.3, lng -117.7 to
//	-116.8) are treated as outliers and excluded from map artifacts. Council
//	districts are 1 through 9; DistrictLabel maps them to the familiar neighborhood
//	labels used in the dashboard sidebar.
//
// Rules that must agree between SQL and Go (status normalization, channel
// bucketing, the bounding box) live here so tests can pin them.
package domain
