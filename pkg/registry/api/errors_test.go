package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/media-registry/pkg/registry"
	"github.com/tendant/media-registry/pkg/registry/api"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{registry.ErrContentMissing, http.StatusNotFound, registry.CodeContentMissing},
		{registry.ErrContentAlreadyExists, http.StatusConflict, registry.CodeContentAlreadyExists},
		{registry.ErrInvalidMetadata, http.StatusBadRequest, registry.CodeInvalidMetadata},
		{registry.ErrFileSizeViolation, http.StatusBadRequest, registry.CodeFileSizeViolation},
		{registry.ErrTagValidationFailed, http.StatusBadRequest, registry.CodeTagValidationFailed},
		{registry.ErrOwnershipMismatch, http.StatusForbidden, registry.CodeOwnershipMismatch},
		{registry.ErrViewingRestricted, http.StatusForbidden, registry.CodeViewingRestricted},
		{registry.ErrAdminPrivilegesRequired, http.StatusForbidden, registry.CodeAdminPrivilegesRequired},
		{registry.ErrUnauthorizedAccess, http.StatusUnauthorized, registry.CodeUnauthorizedAccess},
		{&registry.ContentError{ContentID: 3, Op: "delete", Err: registry.ErrOwnershipMismatch}, http.StatusForbidden, registry.CodeOwnershipMismatch},
		{errors.New("connection reset"), http.StatusInternalServerError, registry.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := api.StatusForError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
