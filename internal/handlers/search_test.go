package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSearchUsersHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := []models.UserView{{ID: 1, Name: "NAME", Username: "USERNAME"}}

	tests := []struct {
		name         string
		req          *http.Request
		mockSetup    func(m *MockSearcher)
		expectedCode int
		expectedBody string
	}{
		{
			name: "default page",
			req:  formRequest("/users/search", url.Values{"search_term": {"USERNAME"}}),
			mockSetup: func(m *MockSearcher) {
				m.EXPECT().Search(gomock.Any(), "USERNAME", 1).Return(users, 1, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"users":[{"id":1,"name":"NAME","username":"USERNAME"}],"total_users":1}`,
		},
		{
			name: "explicit page",
			req:  formRequest("/users/search?page=3", url.Values{"search_term": {"user"}}),
			mockSetup: func(m *MockSearcher) {
				m.EXPECT().Search(gomock.Any(), "user", 3).Return([]models.UserView{}, 21, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"users":[],"total_users":21}`,
		},
		{
			name: "unparsable page falls back to first",
			req:  formRequest("/users/search?page=abc", url.Values{"search_term": {"user"}}),
			mockSetup: func(m *MockSearcher) {
				m.EXPECT().Search(gomock.Any(), "user", 1).Return(users, 1, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"users":[{"id":1,"name":"NAME","username":"USERNAME"}],"total_users":1}`,
		},
		{
			name: "no matches",
			req:  formRequest("/users/search", url.Values{"search_term": {"invalid"}}),
			mockSetup: func(m *MockSearcher) {
				m.EXPECT().Search(gomock.Any(), "invalid", 1).Return(nil, 0, services.ErrNoUsersFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"success":false,"error":404,"message":"resource not found"}`,
		},
		{
			name: "store failure",
			req:  formRequest("/users/search", url.Values{"search_term": {"x"}}),
			mockSetup: func(m *MockSearcher) {
				m.EXPECT().Search(gomock.Any(), "x", 1).Return(nil, 0, errors.New("db down"))
			},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"success":false,"error":422,"message":"unprocessable"}`,
		},
		{
			name:         "missing search_term",
			req:          formRequest("/users/search", url.Values{"other": {"x"}}),
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"success":false,"error":422,"message":"unprocessable"}`,
		},
		{
			name: "search_term in query string only is ignored",
			req: func() *http.Request {
				return formRequest("/users/search?search_term=x", url.Values{})
			}(),
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"success":false,"error":422,"message":"unprocessable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := NewMockSearcher(ctrl)
			if tt.mockSetup != nil {
				tt.mockSetup(mockSvc)
			}

			rr := httptest.NewRecorder()
			NewSearchUsersHandler(mockSvc)(rr, tt.req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestSearchUsersHandler_MultipartForm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("search_term", "USERNAME"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	mockSvc := NewMockSearcher(ctrl)
	mockSvc.EXPECT().Search(gomock.Any(), "USERNAME", 1).
		Return([]models.UserView{{ID: 4, Name: "N", Username: "USERNAME"}}, 1, nil)

	rr := httptest.NewRecorder()
	NewSearchUsersHandler(mockSvc)(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"users":[{"id":4,"name":"N","username":"USERNAME"}],"total_users":1}`, rr.Body.String())
}
