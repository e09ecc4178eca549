package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/obs"
	"eastviewpta.org/internal/pta"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("invalid request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body too large")
		}
		var invalid *pta.ValidationError
		if errors.As(err, &invalid) {
			return invalid
		}
		return badRequest("malformed JSON: " + err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("unexpected data after JSON body")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(w, r, dst)
	var reqErr *requestError
	if errors.As(err, &reqErr) && reqErr.msg == "request body is required" {
		return nil
	}
	return err
}

func parseInt(raw, name string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return val, nil
}

func parsePositiveInt(raw, name string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	if val < min || val > max {
		return 0, badRequest(name + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

// handleError is the single place domain and auth errors become HTTP
// statuses. Anything unexpected is logged and answered with a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *pta.ValidationError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="eastviewpta"`)
		writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer realm="eastviewpta", error="invalid_token"`)
		writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	case errors.Is(err, pta.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, pta.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrNotApproved):
		writeError(w, r, http.StatusForbidden, auth.ErrNotApproved.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, auth.ErrForbidden.Error())
	case errors.Is(err, pta.ErrForbidden):
		writeError(w, r, http.StatusForbidden, pta.ErrForbidden.Error())
	case errors.As(err, &invalid):
		writeError(w, r, http.StatusBadRequest, invalid.Message)
	case errors.Is(err, errBadRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, pta.ErrAlreadyRegistered):
		writeError(w, r, http.StatusBadRequest, pta.ErrAlreadyRegistered.Error())
	case errors.Is(err, pta.ErrEventFull):
		writeError(w, r, http.StatusBadRequest, pta.ErrEventFull.Error())
	case errors.Is(err, pta.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, pta.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, calendar.ErrUnavailable):
		writeError(w, r, http.StatusBadGateway, calendar.ErrUnavailable.Error())
	default:
		obs.Logger().Error("request failed",
			"request_id", requestID(r),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := requestID(r); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
