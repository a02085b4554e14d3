package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ProviderCode is the provider's native error code, when the failure came from a provider
	ProviderCode string `json:"provider_code,omitempty"`
	// Reauthorize tells the client the user has to go through consent again
	Reauthorize bool               `json:"reauthorize,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	Details     []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one invalid request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// NewValidationErrorResponse creates a 400 response body listing invalid fields
func NewValidationErrorResponse(requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponse(ErrCodeValidation, "Request validation failed", requestID)
	resp.Error.Details = details
	return resp
}
