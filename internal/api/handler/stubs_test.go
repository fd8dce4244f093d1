package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/modernapi/identity-system/internal/api/middleware"
	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
)

type stubUserService struct {
	listFn                 func(ctx context.Context) (domain.Result[[]domain.UserRolesView], error)
	registerFn             func(ctx context.Context, in ports.RegisterInput) (domain.Status, error)
	authenticateFn         func(ctx context.Context, email, password string) (domain.Result[[]domain.Claim], error)
	confirmEmailFn         func(ctx context.Context, email, token string) (domain.Status, error)
	requestPasswordResetFn func(ctx context.Context, email string) (domain.Status, error)
	resetPasswordFn        func(ctx context.Context, in ports.ResetPasswordInput) (domain.Status, error)
}

func (s *stubUserService) List(ctx context.Context) (domain.Result[[]domain.UserRolesView], error) {
	return s.listFn(ctx)
}

func (s *stubUserService) Register(ctx context.Context, in ports.RegisterInput) (domain.Status, error) {
	return s.registerFn(ctx, in)
}

func (s *stubUserService) Authenticate(ctx context.Context, email, password string) (domain.Result[[]domain.Claim], error) {
	return s.authenticateFn(ctx, email, password)
}

func (s *stubUserService) ConfirmEmail(ctx context.Context, email, token string) (domain.Status, error) {
	return s.confirmEmailFn(ctx, email, token)
}

func (s *stubUserService) RequestPasswordReset(ctx context.Context, email string) (domain.Status, error) {
	return s.requestPasswordResetFn(ctx, email)
}

func (s *stubUserService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) (domain.Status, error) {
	return s.resetPasswordFn(ctx, in)
}

type stubRoleService struct {
	listFn           func(ctx context.Context) (domain.Result[[]domain.Role], error)
	createFn         func(ctx context.Context, name string) (domain.Result[string], error)
	updateFn         func(ctx context.Context, id, name string) (domain.Status, error)
	addClaimsFn      func(ctx context.Context, id string, claims []domain.Claim) (domain.Status, error)
	removeFromUserFn func(ctx context.Context, roleID, userID string) (domain.Status, error)
	policies         domain.PolicyCatalogue
}

func (s *stubRoleService) List(ctx context.Context) (domain.Result[[]domain.Role], error) {
	return s.listFn(ctx)
}

func (s *stubRoleService) Create(ctx context.Context, name string) (domain.Result[string], error) {
	return s.createFn(ctx, name)
}

func (s *stubRoleService) Update(ctx context.Context, id, name string) (domain.Status, error) {
	return s.updateFn(ctx, id, name)
}

func (s *stubRoleService) AddClaimsToRole(ctx context.Context, id string, claims []domain.Claim) (domain.Status, error) {
	return s.addClaimsFn(ctx, id, claims)
}

func (s *stubRoleService) RemoveRoleFromUser(ctx context.Context, roleID, userID string) (domain.Status, error) {
	return s.removeFromUserFn(ctx, roleID, userID)
}

func (s *stubRoleService) Policies() domain.PolicyCatalogue {
	return s.policies
}

type stubIssuer struct {
	subject string
	claims  []domain.Claim
}

func (i *stubIssuer) Issue(subject string, claims []domain.Claim) (string, error) {
	i.subject, i.claims = subject, claims
	return "signed." + subject, nil
}

// envelope mirrors the JSON shape of domain.Result.
type envelope struct {
	Success   bool            `json:"success"`
	ErrorCode int             `json:"errorCode"`
	Errors    []string        `json:"errors"`
	Data      json.RawMessage `json:"data"`
}

// newContext builds an echo context for a JSON request. A non-empty subject
// simulates a request that went through the Auth middleware.
func newContext(method, target, body, subject string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if subject != "" {
		c.Set(middleware.ContextSubject, subject)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return env
}
