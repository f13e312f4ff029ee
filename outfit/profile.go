package outfit

// DefaultAge is used in the prompt when the profile has none.
const DefaultAge = "25"

// Profile is the persisted user profile. Likeness is an embedded headshot.
type Profile struct {
	APIKey    string `json:"apiKey,omitempty"`
	Likeness  string `json:"likeness,omitempty"`
	Height    string `json:"height,omitempty"`
	Ethnicity string `json:"ethnicity,omitempty"`
	Age       string `json:"age,omitempty"`
	Fit       string `json:"fit,omitempty"`
	Gender    string `json:"gender,omitempty"`
	BodyType  string `json:"bodyType,omitempty"`
}

// AgeOrDefault returns Age, or DefaultAge when empty.
func (p Profile) AgeOrDefault() string {
	if p.Age == "" {
		return DefaultAge
	}
	return p.Age
}

// Redacted returns a copy safe to return over the API: the credential is
// masked and the likeness replaced by a presence marker.
func (p Profile) Redacted() Profile {
	if p.APIKey != "" {
		p.APIKey = "set"
	}
	if p.Likeness != "" {
		p.Likeness = "set"
	}
	return p
}
