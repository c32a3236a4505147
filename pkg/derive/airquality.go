package derive

type AirQuality int

const (
	Good AirQuality = iota
	Moderate
	Poor
)

const (
	moderateVolts = 0.4
	poorVolts     = 0.8
)

func (q AirQuality) String() string {
	switch q {
	case Good:
		return "Good"
	case Moderate:
		return "Moderate"
	case Poor:
		return "Poor"
	default:
		return "Unknown"
	}
}

// ClassifyAirQuality maps the air-quality sensor voltage to a category.
func ClassifyAirQuality(volts float64) AirQuality {
	switch {
	case volts < moderateVolts:
		return Good
	case volts < poorVolts:
		return Moderate
	default:
		return Poor
	}
}
