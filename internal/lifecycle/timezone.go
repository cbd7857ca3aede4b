package lifecycle

// timezoneBands maps longitude ranges to a representative IANA zone. Coarse
// on purpose: it only has to place an account in roughly the right local
// day, not survive a geography quiz.
var timezoneBands = []struct {
	maxLon float64
	zone   string
}{
	{-165, "Pacific/Honolulu"},
	{-135, "America/Anchorage"},
	{-120, "America/Los_Angeles"},
	{-105, "America/Denver"},
	{-90, "America/Chicago"},
	{-75, "America/New_York"},
	{-45, "America/Sao_Paulo"},
	{-15, "Atlantic/Azores"},
	{15, "Europe/London"},
	{30, "Europe/Berlin"},
	{45, "Europe/Moscow"},
	{75, "Asia/Dubai"},
	{105, "Asia/Kolkata"},
	{120, "Asia/Shanghai"},
	{135, "Asia/Tokyo"},
	{150, "Australia/Sydney"},
	{180, "Pacific/Auckland"},
}

// TimezoneForLongitude estimates an IANA zone name from a longitude. Used
// when an imported account has coordinates but no assigned timezone.
func TimezoneForLongitude(lon float64) string {
	if lon < -180 || lon > 180 {
		return "UTC"
	}
	for _, band := range timezoneBands {
		if lon < band.maxLon {
			return band.zone
		}
	}
	return "Pacific/Auckland"
}
