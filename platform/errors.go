package platform

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx platform response. Body is kept for server side diagnostics
// only and must not be returned to untrusted callers.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// newAPIError understands the REST error list, the OAuth2 error object and SOAP faults.
func newAPIError(status int, contentType string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       string(body),
	}

	var restErrors []struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &restErrors); err == nil && len(restErrors) > 0 {
		apiErr.Code = restErrors[0].ErrorCode
		apiErr.Message = restErrors[0].Message
		return apiErr
	}

	var oauthError struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthError); err == nil && oauthError.Error != "" {
		apiErr.Code = oauthError.Error
		apiErr.Message = oauthError.ErrorDescription
		return apiErr
	}

	if strings.Contains(contentType, "xml") {
		if fault, ok := parseSOAPFault(body); ok {
			apiErr.Code = fault.Code
			apiErr.Message = fault.String
		}
	}
	return apiErr
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func parseSOAPFault(body []byte) (soapFault, bool) {
	var envelope struct {
		Body struct {
			Fault *soapFault `xml:"Fault"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &envelope); err != nil || envelope.Body.Fault == nil {
		return soapFault{}, false
	}
	return *envelope.Body.Fault, true
}
