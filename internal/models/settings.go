package models

// TrackingSettings holds every tunable threshold of the forensic pipeline.
// The stop rule and MinTimeDeltaS are heuristics pending domain-expert review.
type TrackingSettings struct {
	// Coordinate validation bounds
	MinLatitude  float64 `yaml:"min_latitude" json:"min_latitude" validate:"gte=-90,lte=90"`
	MaxLatitude  float64 `yaml:"max_latitude" json:"max_latitude" validate:"gte=-90,lte=90,gtfield=MinLatitude"`
	MinLongitude float64 `yaml:"min_longitude" json:"min_longitude" validate:"gte=-180,lte=180"`
	MaxLongitude float64 `yaml:"max_longitude" json:"max_longitude" validate:"gte=-180,lte=180,gtfield=MinLongitude"`

	// Anomaly flagging
	MaxSpeedKmh      float64 `yaml:"max_speed_kmh" json:"max_speed_kmh" validate:"gt=0"`
	MaxAccelerationG float64 `yaml:"max_acceleration_g" json:"max_acceleration_g" validate:"gt=0"`
	MinTimeDeltaS    float64 `yaml:"min_time_delta_s" json:"min_time_delta_s" validate:"gte=0"`
	PreserveMetadata bool    `yaml:"preserve_metadata" json:"preserve_metadata"`

	// Segment certainty tiers (seconds)
	HighCertaintyS   float64 `yaml:"high_certainty_s" json:"high_certainty_s" validate:"gt=0"`
	MediumCertaintyS float64 `yaml:"medium_certainty_s" json:"medium_certainty_s" validate:"gtefield=HighCertaintyS"`
	MaxGapS          float64 `yaml:"max_gap_s" json:"max_gap_s" validate:"gtefield=MediumCertaintyS"`

	// Stop rule: less than StopDistanceM over more than StopMinTimeS is a stop
	StopDistanceM float64 `yaml:"stop_distance_m" json:"stop_distance_m" validate:"gte=0"`
	StopMinTimeS  float64 `yaml:"stop_min_time_s" json:"stop_min_time_s" validate:"gte=0"`

	// Playback resampling
	InterpolationEnabled   bool    `yaml:"interpolation_enabled" json:"interpolation_enabled"`
	InterpolationIntervalS float64 `yaml:"interpolation_interval_s" json:"interpolation_interval_s" validate:"gt=0"`
	UniformToleranceS      float64 `yaml:"uniform_tolerance_s" json:"uniform_tolerance_s" validate:"gte=0"`

	// Projection
	ProjectionAreaThresholdKm  float64 `yaml:"projection_area_threshold_km" json:"projection_area_threshold_km" validate:"gt=0"`
	ProjectionCacheSize        int     `yaml:"projection_cache_size" json:"projection_cache_size" validate:"gte=0"`
	ProjectionCacheToleranceKm float64 `yaml:"projection_cache_tolerance_km" json:"projection_cache_tolerance_km" validate:"gte=0"`
}

// DefaultTrackingSettings returns the defaults used when no settings file is given
func DefaultTrackingSettings() TrackingSettings {
	return TrackingSettings{
		MinLatitude:                -90,
		MaxLatitude:                90,
		MinLongitude:               -180,
		MaxLongitude:               180,
		MaxSpeedKmh:                200,
		MaxAccelerationG:           1.0,
		MinTimeDeltaS:              0.5,
		PreserveMetadata:           true,
		HighCertaintyS:             5,
		MediumCertaintyS:           10,
		MaxGapS:                    30,
		StopDistanceM:              5,
		StopMinTimeS:               5,
		InterpolationEnabled:       false,
		InterpolationIntervalS:     1.0,
		UniformToleranceS:          0.001,
		ProjectionAreaThresholdKm:  100,
		ProjectionCacheSize:        32,
		ProjectionCacheToleranceKm: 1.0,
	}
}
