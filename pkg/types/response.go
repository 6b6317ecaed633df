package types

// SuccessEnvelope wraps every successful API payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape returned to clients.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
