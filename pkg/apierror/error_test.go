package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
		code   string
	}{
		{"bad request", BadRequest("bad"), http.StatusBadRequest, "BAD_REQUEST"},
		{"validation", Validation("invalid"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"image", Image("bad image"), http.StatusBadRequest, "IMAGE_ERROR"},
		{"not found", NotFound("missing"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", Conflict("moved"), http.StatusConflict, "CONFLICT"},
		{"sync in progress", SyncInProgress(), http.StatusConflict, "SYNC_IN_PROGRESS"},
		{"network", Network("down"), http.StatusBadGateway, "NETWORK_ERROR"},
		{"timeout", Timeout("slow"), http.StatusGatewayTimeout, "TIMEOUT"},
		{"internal", Internal("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unauthorized", Unauthorized("who"), http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestValidation_Details(t *testing.T) {
	err := Validation("invalid entry",
		FieldError{Field: "name", Message: "must not be empty"},
		FieldError{Field: "price", Message: "must not be negative"},
	)

	require.Len(t, err.Details, 2)
	assert.Equal(t, "name", err.Details[0].Field)
}

func TestToJSON(t *testing.T) {
	err := Validation("invalid entry", FieldError{Field: "name", Message: "must not be empty"})

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(err.ToJSON(), &payload))

	assert.Equal(t, false, payload["success"])
	errObj := payload["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Equal(t, "invalid entry", errObj["message"])
	assert.NotEmpty(t, errObj["details"])
}

func TestIsCode(t *testing.T) {
	err := Conflict("moved")
	assert.True(t, IsCode(err, "CONFLICT"))
	assert.False(t, IsCode(err, "NOT_FOUND"))

	wrapped := fmt.Errorf("sync failed: %w", err)
	assert.True(t, IsCode(wrapped, "CONFLICT"))

	assert.False(t, IsCode(errors.New("plain"), "CONFLICT"))
	assert.False(t, IsCode(nil, "CONFLICT"))
}

func TestFrom(t *testing.T) {
	conflict := Conflict("moved")
	assert.Equal(t, conflict, From(fmt.Errorf("wrapped: %w", conflict)))

	plain := From(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", plain.Code)
	assert.Equal(t, "boom", plain.Message)
}
