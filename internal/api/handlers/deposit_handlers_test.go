package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// The list handlers validate query parameters before touching the service,
// so a nil service is safe for the rejection paths.
func depositRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewDepositHandlers(nil, testLogger())
	router := gin.New()
	router.GET("/api/v1/deposits", h.ListDeposits)
	return router
}

func TestDepositHandlers_ListDeposits_RejectsBadParams(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unknown status",
			query:          "?status=settled",
			expectedStatus: http.StatusBadRequest,
			expectedError:  ErrCodeInvalidStatus,
		},
		{
			name:           "zero limit",
			query:          "?limit=0",
			expectedStatus: http.StatusBadRequest,
			expectedError:  ErrCodeInvalidLimit,
		},
		{
			name:           "negative limit",
			query:          "?limit=-5",
			expectedStatus: http.StatusBadRequest,
			expectedError:  ErrCodeInvalidLimit,
		},
		{
			name:           "non-numeric limit",
			query:          "?limit=many",
			expectedStatus: http.StatusBadRequest,
			expectedError:  ErrCodeInvalidLimit,
		},
	}

	router := depositRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/api/v1/deposits"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}

func TestTreasuryHandlers_GetHistory_RejectsBadParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTreasuryHandlers(nil, testLogger())
	router := gin.New()
	router.GET("/api/v1/treasury/history", h.GetHistory)

	tests := []struct {
		name          string
		query         string
		expectedError string
	}{
		{"unknown account type", "?accountType=MARGIN", ErrCodeInvalidRequest},
		{"zero limit", "?limit=0", ErrCodeInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/api/v1/treasury/history"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}
