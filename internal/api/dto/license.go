package dto

// LicenseKeyRequest carries a license key. Shape and signature are judged by
// the codec so that a malformed key gets the same 401 as a forged one.
type LicenseKeyRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required,max=128"`
}
