package duckdb

// cleanSQL coerces types, trims categorical strings, normalizes status to
// open/closed, and derives the time and duration columns. Rows are dropped as
// malformed when the request timestamp is unparseable, the case id is blank,
// or the resolution would be negative. Open rows get NULL date_closed so a
// stale close date in an open export cannot leak a resolution duration.
//
// DAYOFWEEK in DuckDB is 0=Sunday..6=Saturday, which is exactly the
// request_dow convention the dashboard expects.
const cleanSQL = `
CREATE OR REPLACE TABLE cleaned AS
SELECT
    TRIM(service_request_id)                            AS service_request_id,
    TRIM(service_request_parent_id)                     AS service_request_parent_id,
    TRIM(sap_notification_number)                       AS sap_notification_number,

    TRY_CAST(date_requested AS TIMESTAMP)               AS date_requested,
    CASE WHEN LOWER(TRIM(status)) = 'closed'
         THEN TRY_CAST(date_closed AS TIMESTAMP)
    END                                                 AS date_closed,

    TRY_CAST(case_age_days AS INTEGER)                  AS case_age_days,
    TRIM(case_record_type)                              AS case_record_type,
    TRIM(service_name)                                  AS service_name,
    TRIM(service_name_detail)                           AS service_name_detail,
    CASE WHEN LOWER(TRIM(status)) = 'closed' THEN 'closed' ELSE 'open' END AS status,

    TRY_CAST(lat AS DOUBLE)                             AS lat,
    TRY_CAST(lng AS DOUBLE)                             AS lng,
    TRIM(street_address)                                AS street_address,
    TRIM(zipcode)                                       AS zipcode,
    TRY_CAST(council_district AS INTEGER)               AS council_district,
    TRY_CAST(comm_plan_code AS INTEGER)                 AS comm_plan_code,
    TRIM(comm_plan_name)                                AS comm_plan_name,
    TRIM(park_name)                                     AS park_name,
    TRIM(case_origin)                                   AS case_origin,
    TRIM(referred)                                      AS referred,

    CASE WHEN LOWER(TRIM(status)) = 'closed'
              AND TRY_CAST(date_closed AS TIMESTAMP) IS NOT NULL
         THEN DATE_DIFF('day',
              TRY_CAST(date_requested AS TIMESTAMP),
              TRY_CAST(date_closed AS TIMESTAMP))
    END                                                 AS resolution_days,

    YEAR(TRY_CAST(date_requested AS TIMESTAMP))         AS request_year,
    MONTH(TRY_CAST(date_requested AS TIMESTAMP))        AS request_month,
    QUARTER(TRY_CAST(date_requested AS TIMESTAMP))      AS request_quarter,
    DAYOFWEEK(TRY_CAST(date_requested AS TIMESTAMP))    AS request_dow,
    HOUR(TRY_CAST(date_requested AS TIMESTAMP))         AS request_hour,
    DATE_TRUNC('month', TRY_CAST(date_requested AS TIMESTAMP)) AS request_month_start,

    filename AS source_file

FROM raw_requests
WHERE TRY_CAST(date_requested AS TIMESTAMP) IS NOT NULL
  AND service_request_id IS NOT NULL
  AND TRIM(service_request_id) != ''
  AND (LOWER(TRIM(status)) != 'closed'
       OR TRY_CAST(date_closed AS TIMESTAMP) IS NULL
       OR DATE_DIFF('day',
            TRY_CAST(date_requested AS TIMESTAMP),
            TRY_CAST(date_closed AS TIMESTAMP)) >= 0)
`

// dedupSQL keeps exactly one row per service_request_id. A case reported in an
// open export and later in a closed export resolves to the closed row;
// conflicting closed rows resolve to the latest date_closed, then to the
// lexicographically greatest source file so reruns pick the same winner.
const dedupSQL = `
CREATE OR REPLACE TABLE requests AS
SELECT * FROM cleaned
QUALIFY ROW_NUMBER() OVER (
    PARTITION BY service_request_id
    ORDER BY (status = 'closed') DESC,
             date_closed DESC NULLS LAST,
             source_file DESC
) = 1
`

// aggregation is one precomputed dashboard rollup, exported as its own parquet
// file. Every SELECT carries a total ORDER BY so rebuilds from identical raw
// input are byte-stable.
type aggregation struct {
	name string
	sql  string
	zstd bool
}

var aggregations = []aggregation{
	{
		name: "response_by_neighborhood",
		sql: `
			SELECT
			    comm_plan_name,
			    council_district,
			    COUNT(*)                                AS total_requests,
			    COUNT(date_closed)                      AS closed_requests,
			    COUNT(*) - COUNT(date_closed)           AS open_requests,
			    ROUND(AVG(resolution_days), 1)          AS avg_resolution_days,
			    MEDIAN(resolution_days)                 AS median_resolution_days,
			    PERCENTILE_CONT(0.90) WITHIN GROUP (ORDER BY resolution_days) AS p90_resolution_days,
			    ROUND(COUNT(date_closed) * 100.0 / COUNT(*), 1) AS close_rate_pct
			FROM requests
			WHERE comm_plan_name IS NOT NULL AND comm_plan_name != ''
			GROUP BY comm_plan_name, council_district
			ORDER BY total_requests DESC, comm_plan_name, council_district`,
	},
	{
		name: "volume_by_service_monthly",
		sql: `
			SELECT
			    request_month_start,
			    service_name,
			    COUNT(*) AS request_count
			FROM requests
			WHERE service_name IS NOT NULL AND service_name != ''
			GROUP BY request_month_start, service_name
			ORDER BY request_month_start, request_count DESC, service_name`,
	},
	{
		name: "resolution_by_district",
		sql: `
			SELECT
			    council_district,
			    service_name,
			    COUNT(*)                                AS total_requests,
			    COUNT(date_closed)                      AS closed_requests,
			    ROUND(AVG(resolution_days), 1)          AS avg_resolution_days,
			    MEDIAN(resolution_days)                 AS median_resolution_days,
			    ROUND(COUNT(date_closed) * 100.0 / COUNT(*), 1) AS close_rate_pct
			FROM requests
			WHERE council_district IS NOT NULL
			GROUP BY council_district, service_name
			ORDER BY council_district, total_requests DESC, service_name`,
	},
	{
		name: "monthly_trends",
		sql: `
			SELECT
			    request_month_start,
			    COUNT(*)                        AS total_requests,
			    COUNT(date_closed)              AS closed_requests,
			    ROUND(AVG(resolution_days), 1)  AS avg_resolution_days,
			    MEDIAN(resolution_days)         AS median_resolution_days
			FROM requests
			GROUP BY request_month_start
			ORDER BY request_month_start`,
	},
	{
		name: "top_problem_types",
		sql: `
			SELECT
			    service_name,
			    COUNT(*)                        AS total_requests,
			    COUNT(date_closed)              AS closed_requests,
			    COUNT(*) - COUNT(date_closed)   AS open_requests,
			    ROUND(AVG(resolution_days), 1)  AS avg_resolution_days,
			    MEDIAN(resolution_days)         AS median_resolution_days,
			    ROUND(COUNT(date_closed) * 100.0 / COUNT(*), 1) AS close_rate_pct
			FROM requests
			WHERE service_name IS NOT NULL AND service_name != ''
			GROUP BY service_name
			ORDER BY total_requests DESC, service_name`,
	},
	{
		name: "map_points",
		sql: `
			SELECT
			    lat,
			    lng,
			    service_name,
			    request_year,
			    comm_plan_name,
			    council_district
			FROM requests
			WHERE lat IS NOT NULL
			  AND lng IS NOT NULL
			  AND lat BETWEEN 32.5 AND 33.3
			  AND lng BETWEEN -117.7 AND -116.8
			ORDER BY lat, lng, service_name, request_year`,
		zstd: true,
	},
	{
		name: "yearly_volume",
		sql: `
			SELECT
			    request_year,
			    COUNT(*) AS total_requests,
			    COUNT(date_closed) AS closed_requests
			FROM requests
			WHERE request_year IS NOT NULL
			GROUP BY request_year
			ORDER BY request_year`,
	},
	{
		name: "case_origin",
		sql: `
			SELECT
			    CASE
			        WHEN case_origin IN ('Mobile') THEN 'Mobile App'
			        WHEN case_origin IN ('Web') THEN 'Web'
			        WHEN case_origin IN ('Phone') THEN 'Phone'
			        ELSE 'Other'
			    END AS channel,
			    COUNT(*) AS request_count
			FROM requests
			GROUP BY channel
			ORDER BY request_count DESC, channel`,
	},
	{
		name: "day_hour_patterns",
		sql: `
			SELECT
			    request_dow,
			    request_hour,
			    COUNT(*) AS request_count
			FROM requests
			GROUP BY request_dow, request_hour
			ORDER BY request_dow, request_hour`,
	},
}

// AggregationNames lists every aggregation artifact, in build order. The
// validate command and the API readiness check use it to know what must exist.
func AggregationNames() []string {
	names := make([]string, len(aggregations))
	for i, agg := range aggregations {
		names[i] = agg.name
	}
	return names
}
