package quality

// StorageRecommendations returns storage-condition advice for a base shelf-life
// estimate.
func StorageRecommendations(shelfLifeDays int) []string {
	switch {
	case shelfLifeDays > 60:
		return []string{
			"Maintain temperature: 0-4°C (32-39°F)",
			"Keep relative humidity: 65-70%",
			"Ensure good air circulation",
		}
	case shelfLifeDays > 30:
		return []string{
			"Store in cool, dry place (10-15°C)",
			"Avoid high humidity areas",
			"Check weekly for sprouting",
		}
	default:
		return []string{
			"Keep in refrigerated storage if possible",
			"Use FIFO (First In, First Out) principle",
			"Daily quality monitoring recommended",
		}
	}
}
