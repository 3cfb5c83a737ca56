// Package domain implements the notability rule engine for biodiversity
// observation datasets (eBird, iNaturalist).
//
// # Rules File
//
// Rules are comma-separated rows with a header line:
//
//	common_name,start_month,start_day,end_month,end_day,coordinates
//	Snowy Owl,11,,2,,
//	Snowy Owl,,,,,"0,0|0,10|10,10|10,0"
//
// An empty date field means "absent", never zero. A rule restricts a species
// to a date window, a region, both, or neither. A row with no date fields and
// no coordinates flags every observation of that species.
//
// Date windows:
//
//	Months are 1–12. A missing start month resolves to January and a missing
//	end month to December. When the end month is numerically before the start
//	month the window wraps the year boundary: 11..2 covers Nov, Dec, Jan, Feb.
//	Day bounds only narrow the boundary months of the window. A missing end
//	day resolves to the last day of the end month in the observation's year,
//	so Feb 29 is inside "..2,," in leap years.
//
// Regions:
//
//	The coordinates field is a pipe-delimited list of "lat,lon" vertices.
//	The polygon closes itself; at least three vertices are required. Points on
//	the boundary are inside. Vertices and observation points both place
//	latitude on the first axis, see [NewPoint].
//
// # Matching
//
// Species names are trimmed and lower-cased before lookup. An observation is
// notable when at least one rule for its species matches (OR across rules);
// a rule matches when both its window and its region accept the observation
// (AND within a rule). Species without rules are never notable.
package domain
