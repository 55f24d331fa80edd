package commerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

// structured codes the commerce API may return; anything else falls back to the HTTP status.
var codesByWireCode = map[string]pkgerrors.Code{
	string(pkgerrors.CodeCartSubmitted): pkgerrors.CodeCartSubmitted,
	string(pkgerrors.CodeAuthRequired):  pkgerrors.CodeAuthRequired,
	string(pkgerrors.CodeGateway):       pkgerrors.CodeGateway,
	string(pkgerrors.CodeValidation):    pkgerrors.CodeValidation,
	string(pkgerrors.CodeNotFound):      pkgerrors.CodeNotFound,
	string(pkgerrors.CodeConflict):      pkgerrors.CodeConflict,
	string(pkgerrors.CodeIdempotency):   pkgerrors.CodeIdempotency,
	string(pkgerrors.CodeForbidden):     pkgerrors.CodeForbidden,
	string(pkgerrors.CodeRateLimit):     pkgerrors.CodeRateLimit,
}

func mapStatus(resp *rawResponse, endpoint string) error {
	var body errorBody
	_ = json.Unmarshal(resp.body, &body)

	code, ok := codesByWireCode[strings.ToUpper(strings.TrimSpace(body.Error.Code))]
	if !ok {
		code = codeForStatus(resp.status)
	}
	message := strings.TrimSpace(body.Error.Message)
	if message == "" {
		message = fmt.Sprintf("%s rejected with status %d", endpoint, resp.status)
	}

	err := pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.status, truncate(string(resp.body), errorBodyLogLimit)), message)
	if body.Error.Details != nil {
		err = err.WithDetails(body.Error.Details)
	}
	return err
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeAuthRequired
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
