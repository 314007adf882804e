package api

type HTTPError struct {
	StatusCode int
	Message    string
	// Code and Details surface machine-readable failure context, such as
	// which user currently holds AI control.
	Code     string
	Details  map[string]interface{}
	ErrorLog error
}

func (e *HTTPError) Error() string {
	return e.Message
}

type ApiError struct {
	Error   string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
