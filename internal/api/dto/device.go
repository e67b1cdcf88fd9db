package dto

// DevicePollRequest is sent by the CLI on each poll. Unknown codes are
// reported as expired by the service, so only the size is checked here.
type DevicePollRequest struct {
	DeviceCode string `json:"deviceCode" validate:"required,max=128"`
}

// DeviceCompleteRequest is sent by the browser after the identity provider
// redirect. Presence and format are checked by the service in a fixed order
// after rate limiting.
type DeviceCompleteRequest struct {
	UserCode          string `json:"userCode" validate:"max=16"`
	AuthorizationCode string `json:"identityAuthorizationCode" validate:"max=2048"`
	State             string `json:"csrfState" validate:"max=256"`
}
