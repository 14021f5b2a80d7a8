// Package domain models geotagged crisis events and the pure functions that
// classify them.
//
// # Data Sources
//
// Two independent upstream producers publish JSON events to Kafka:
//
// Weather risk readings (topic "weather_risks"): per-location environmental
// indices sampled from a weather API. The producer derives a fire index and a
// flood index (both 0-100) from raw conditions and attaches a risk level
// computed from the larger of the two.
//
// Social situational reports (topic "social_signals"): short free-text
// reports tagged with a crisis category (fire, flood, other), an urgency tier
// (low, medium, high, critical), and a verification flag.
//
// Both event kinds carry a producer-assigned unique event ID. IDs make
// re-delivery safe: the store treats a second ingest of the same ID as a
// no-op, so at-least-once delivery from the broker never produces duplicate
// rows in aggregation.
//
// # Spatial Binning
//
// Events are grouped into grid cells by rounding latitude and longitude to
// the nearest multiple of a fixed resolution (default 0.5 degrees). Cell
// width in kilometers varies with latitude; the cell is treated as a uniform
// administrative unit, a deliberate approximation rather than a geodesic
// grid. Cell membership is recomputed from the event's coordinates on every
// aggregation pass and never stored.
//
// # Risk Classification
//
// Weather risk uses fixed thresholds on max(fireIndex, floodIndex):
//
//	>= 70 critical | >= 50 high | >= 30 moderate | else low
//
// The combined cell-level classification ORs the weather level with social
// report counts: a single source crossing a threshold is sufficient, sources
// are never averaged. See [ScoreCombined].
package domain
