package models

// ErrorResponse is the JSON error envelope returned by dynroute.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a single error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// NewErrorResponse builds an envelope for the given status code.
func NewErrorResponse(code int, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message, Type: "dynroute_error", Code: code}}
}
