package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type enrollmentServiceMock struct {
	submitReq   dto.SubmitEnrollmentRequest
	submitErr   error
	lastQuery   dto.EnrollmentQuery
	withdrawReq dto.WithdrawEnrollmentRequest
	allocateReq dto.AllocateEnrollmentRequest
	allocateRes *dto.AllocationResult
	getErr      error
}

func (m *enrollmentServiceMock) Submit(ctx context.Context, req dto.SubmitEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	m.submitReq = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.EnrollmentRequest{ID: "r1", StudentID: req.StudentID, CourseID: req.CourseID, Status: models.EnrollmentPending}, nil
}

func (m *enrollmentServiceMock) List(ctx context.Context, query dto.EnrollmentQuery, actor *models.JWTClaims) ([]models.EnrollmentRequest, *models.Pagination, error) {
	m.lastQuery = query
	return []models.EnrollmentRequest{{ID: "r1"}}, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: 1}, nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.EnrollmentRequest{ID: id}, nil
}

func (m *enrollmentServiceMock) Withdraw(ctx context.Context, id string, req dto.WithdrawEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	m.withdrawReq = req
	return &models.EnrollmentRequest{ID: id, Status: models.EnrollmentCancelled}, nil
}

func (m *enrollmentServiceMock) RunAllocation(ctx context.Context, req dto.AllocateEnrollmentRequest) (*dto.AllocationResult, error) {
	m.allocateReq = req
	return m.allocateRes, nil
}

func TestEnrollmentHandlerSubmitDefaultsStudent(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	body := dto.SubmitEnrollmentRequest{CourseID: "course-1", Preferences: []dto.SectionPreferenceInput{{SectionID: "sec-a", Rank: 1}}}
	w := serve(t, http.MethodPost, "/enrollments", "/enrollments", body, studentUser, h.Submit)
	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, "s1", svc.submitReq.StudentID)

	var created models.EnrollmentRequest
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "r1", created.ID)
}

func TestEnrollmentHandlerSubmitErrors(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceMock{submitErr: appErrors.Clone(appErrors.ErrConflict, "open request exists")})

	w := serve(t, http.MethodPost, "/enrollments", "/enrollments", `{"courseId":`, studentUser, h.Submit)
	requireStatus(t, w, http.StatusBadRequest)

	w = serve(t, http.MethodPost, "/enrollments", "/enrollments", dto.SubmitEnrollmentRequest{CourseID: "course-1"}, studentUser, h.Submit)
	requireStatus(t, w, http.StatusConflict)
	assert.Equal(t, appErrors.ErrConflict.Code, decode(t, w).Error.Code)

	w = serve(t, http.MethodPost, "/enrollments", "/enrollments", dto.SubmitEnrollmentRequest{}, nil, h.Submit)
	requireStatus(t, w, http.StatusUnauthorized)
}

func TestEnrollmentHandlerListParsesFilters(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	w := serve(t, http.MethodGet, "/enrollments", "/enrollments?courseId=course-1&status=pending,%20waitlisted&page=2&pageSize=5", nil, adminUser, h.List)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "course-1", svc.lastQuery.CourseID)
	assert.Equal(t, []models.EnrollmentRequestStatus{models.EnrollmentPending, models.EnrollmentWaitlisted}, svc.lastQuery.Status)
	assert.Equal(t, 2, svc.lastQuery.Page)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 5, env.Pagination.PageSize)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")})
	w := serve(t, http.MethodGet, "/enrollments/:id", "/enrollments/r9", nil, adminUser, h.Get)
	requireStatus(t, w, http.StatusNotFound)
}

func TestEnrollmentHandlerWithdrawOptionalBody(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	w := serve(t, http.MethodPost, "/enrollments/:id/withdraw", "/enrollments/r1/withdraw", nil, studentUser, h.Withdraw)
	requireStatus(t, w, http.StatusOK)
	assert.Empty(t, svc.withdrawReq.Reason)

	w = serve(t, http.MethodPost, "/enrollments/:id/withdraw", "/enrollments/r1/withdraw", dto.WithdrawEnrollmentRequest{Reason: "moved school"}, studentUser, h.Withdraw)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "moved school", svc.withdrawReq.Reason)
}

func TestEnrollmentHandlerAllocate(t *testing.T) {
	svc := &enrollmentServiceMock{allocateRes: &dto.AllocationResult{Approved: 2, Waitlisted: 1}}
	h := NewEnrollmentHandler(svc)

	w := serve(t, http.MethodPost, "/enrollments/allocate", "/enrollments/allocate", dto.AllocateEnrollmentRequest{CourseID: "course-1"}, adminUser, h.Allocate)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "course-1", svc.allocateReq.CourseID)

	svc.allocateRes = &dto.AllocationResult{JobID: "job-1"}
	w = serve(t, http.MethodPost, "/enrollments/allocate", "/enrollments/allocate", dto.AllocateEnrollmentRequest{CourseID: "course-1", Async: true}, adminUser, h.Allocate)
	requireStatus(t, w, http.StatusAccepted)
}
