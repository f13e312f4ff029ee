package store

// Store keys. Profile fields are stored one per key.
const (
	KeyAPIKey    = "apiKey"
	KeyHeadshot  = "userHeadshot"
	KeyHeight    = "userHeight"
	KeyEthnicity = "userEthnicity"
	KeyAge       = "userAge"
	KeyFit       = "userFit"
	KeyGender    = "userGender"
	KeyBodyType  = "userBodyType"

	KeyWardrobe = "wardrobe"

	KeyLastDetectedTitle = "lastDetectedTitle"
	KeyLastDetectedImage = "lastDetectedImage"
	KeyLastDetectedURL   = "lastDetectedUrl"

	// LookPrefix prefixes per-page cached composites.
	LookPrefix = "look_"
)

// LegacyWardrobeKeys are older names of the wardrobe list, newest first.
var LegacyWardrobeKeys = []string{"snsePickups", "pickups"}

// IsDetectionKey reports whether key is one of the last detection keys.
func IsDetectionKey(key string) bool {
	switch key {
	case KeyLastDetectedTitle, KeyLastDetectedImage, KeyLastDetectedURL:
		return true
	}
	return false
}
