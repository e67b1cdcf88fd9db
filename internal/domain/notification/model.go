package notification

// Kind identifies a transactional email template
type Kind string

const (
	KindWelcome Kind = "welcome"
	KindLicense Kind = "license_key"
	KindUpgrade Kind = "upgrade_confirmation"
)

// Message is a rendered email
type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
	Text    string
}

// LicenseDetails fills the license templates
type LicenseDetails struct {
	Email      string
	LicenseKey string
	Tier       string
	TrialLimit int
}
