package router

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"postbox/internal/auth"
	"postbox/internal/handler"
	"postbox/internal/repository"
	"postbox/internal/service"
	"postbox/internal/testutil"
)

const testSecret = "router-test-secret"

type testApp struct {
	e          *echo.Echo
	jwtService *auth.JWTService
	auth       service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)

	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	jwtService := auth.NewJWTService(testSecret)

	authService := service.NewAuthService(users, auth.NewBcryptHasher(bcrypt.MinCost), jwtService, nil)
	userService := service.NewUserService(users, nil, time.Minute)
	postService := service.NewPostService(posts, userService, nil)

	e := echo.New()
	Register(e, jwtService, Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Users: handler.NewUserHandler(userService),
		Posts: handler.NewPostHandler(postService),
	})
	return &testApp{e: e, jwtService: jwtService, auth: authService}
}

func (a *testApp) register(t *testing.T, username string) uint {
	t.Helper()
	var res handler.RegisterResponse
	apitest.New().
		Handler(a.e).
		Post("/api/auth/register").
		JSON(fmt.Sprintf(`{"username": %q, "password": "secret-%s"}`, username, username)).
		Expect(t).
		Status(http.StatusCreated).
		End().
		JSON(&res)
	require.NotZero(t, res.UserID)
	return res.UserID
}

func (a *testApp) login(t *testing.T, username string) string {
	t.Helper()
	var res handler.LoginResponse
	apitest.New().
		Handler(a.e).
		Post("/api/auth/login").
		JSON(fmt.Sprintf(`{"username": %q, "password": "secret-%s"}`, username, username)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.expires_at")).
		End().
		JSON(&res)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func bearer(token string) string {
	return "Bearer " + token
}

func TestVisibilityScenario(t *testing.T) {
	app := newTestApp(t)

	aliceID := app.register(t, "alice")
	bobID := app.register(t, "bob")
	app.register(t, "carol")

	alice := app.login(t, "alice")
	bob := app.login(t, "bob")
	carol := app.login(t, "carol")

	var created handler.PostResponse
	apitest.New().
		Handler(app.e).
		Post("/api/posts").
		Header("Authorization", bearer(alice)).
		JSON(fmt.Sprintf(`{"content": "for bob only", "visible_to": [%d], "author_id": 999}`, bobID)).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.author_id", float64(aliceID))).
		Assert(jsonpath.Equal("$.author_name", "alice")).
		Assert(jsonpath.Len("$.visible_to", 1)).
		End().
		JSON(&created)
	postPath := fmt.Sprintf("/api/posts/%d", created.ID)

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		Assert(jsonpath.Equal("$[0].content", "for bob only")).
		End()

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Header("Authorization", bearer(carol)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 0)).
		End()

	apitest.New().
		Handler(app.e).
		Get(postPath).
		Header("Authorization", bearer(carol)).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.code", "NOT_FOUND")).
		End()

	apitest.New().
		Handler(app.e).
		Delete(postPath).
		Header("Authorization", bearer(carol)).
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Equal("$.code", "FORBIDDEN")).
		End()

	// A listed reader still cannot mutate.
	apitest.New().
		Handler(app.e).
		Patch(postPath).
		Header("Authorization", bearer(bob)).
		JSON(`{"content": "hijacked"}`).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	apitest.New().
		Handler(app.e).
		Delete(postPath).
		Header("Authorization", bearer(alice)).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(app.e).
		Delete(postPath).
		Header("Authorization", bearer(alice)).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestPatchVisibilityStates(t *testing.T) {
	app := newTestApp(t)

	app.register(t, "alice")
	bobID := app.register(t, "bob")
	alice := app.login(t, "alice")
	bob := app.login(t, "bob")

	var created handler.PostResponse
	apitest.New().
		Handler(app.e).
		Post("/api/posts").
		Header("Authorization", bearer(alice)).
		JSON(`{"content": "draft"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.visible_to", nil)).
		End().
		JSON(&created)
	postPath := fmt.Sprintf("/api/posts/%d", created.ID)

	apitest.New().
		Handler(app.e).
		Patch(postPath).
		Header("Authorization", bearer(alice)).
		JSON(`{"visible_to": []}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.visible_to", 0)).
		Assert(jsonpath.Equal("$.content", "draft")).
		End()

	apitest.New().
		Handler(app.e).
		Get(postPath).
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	// Absent visible_to keeps the restriction.
	apitest.New().
		Handler(app.e).
		Put(postPath).
		Header("Authorization", bearer(alice)).
		JSON(`{"content": "final"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.visible_to", 0)).
		Assert(jsonpath.Equal("$.content", "final")).
		End()

	apitest.New().
		Handler(app.e).
		Patch(postPath).
		Header("Authorization", bearer(alice)).
		JSON(fmt.Sprintf(`{"visible_to": [%d]}`, bobID)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.visible_to[0]", float64(bobID))).
		End()

	apitest.New().
		Handler(app.e).
		Patch(postPath).
		Header("Authorization", bearer(alice)).
		JSON(`{"visible_to": null}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.visible_to", nil)).
		End()

	apitest.New().
		Handler(app.e).
		Patch(postPath).
		Header("Authorization", bearer(alice)).
		JSON(`{}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "INVALID_INPUT")).
		End()
}

func TestBearerAuth(t *testing.T) {
	app := newTestApp(t)
	userID := app.register(t, "alice")

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.code", "UNAUTHORIZED")).
		End()

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Header("Authorization", "Basic YWxpY2U6c2VjcmV0").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Header("Authorization", "Bearer not-a-token").
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Equal("$.code", "FORBIDDEN")).
		End()

	expired := auth.NewJWTService(testSecret, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * auth.TokenExpiry)
	}))
	token, _, err := expired.Issue(userID, false)
	require.NoError(t, err)
	apitest.New().
		Handler(app.e).
		Get("/api/me").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	forged, _, err := auth.NewJWTService("another-secret").Issue(userID, true)
	require.NoError(t, err)
	apitest.New().
		Handler(app.e).
		Get("/api/me").
		Header("Authorization", bearer(forged)).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	apitest.New().
		Handler(app.e).
		Get("/api/me").
		Header("Authorization", bearer(app.login(t, "alice"))).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.user_id", float64(userID))).
		Assert(jsonpath.Equal("$.is_admin", false)).
		End()
}

func TestAuthEndpoints(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice")

	apitest.New().
		Handler(app.e).
		Post("/api/auth/register").
		JSON(`{"username": "alice", "password": "another"}`).
		Expect(t).
		Status(http.StatusConflict).
		Assert(jsonpath.Equal("$.code", "DUPLICATE_USERNAME")).
		End()

	apitest.New().
		Handler(app.e).
		Post("/api/auth/register").
		JSON(`{"username": "dave"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "INVALID_INPUT")).
		End()

	apitest.New().
		Handler(app.e).
		Post("/api/auth/login").
		JSON(`{"username": "alice", "password": "wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.code", "INVALID_CREDENTIALS")).
		End()

	apitest.New().
		Handler(app.e).
		Post("/api/auth/login").
		JSON(`{"username": "nobody", "password": "wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.code", "INVALID_CREDENTIALS")).
		End()
}

func TestAdminSeesEverything(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice")
	alice := app.login(t, "alice")

	_, err := app.auth.Register(t.Context(), service.RegisterInput{Username: "root", Password: "secret-root", IsAdmin: true})
	require.NoError(t, err)
	root := app.login(t, "root")

	for _, body := range []string{`{"content": "a", "visible_to": []}`, `{"content": "b"}`} {
		apitest.New().
			Handler(app.e).
			Post("/api/posts").
			Header("Authorization", bearer(alice)).
			JSON(body).
			Expect(t).
			Status(http.StatusCreated).
			End()
	}

	apitest.New().
		Handler(app.e).
		Get("/api/posts").
		Header("Authorization", bearer(root)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 2)).
		End()

	apitest.New().
		Handler(app.e).
		Get("/api/users/1").
		Header("Authorization", bearer(root)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "alice")).
		End()

	apitest.New().
		Handler(app.e).
		Get("/healthz").
		Expect(t).
		Status(http.StatusOK).
		Body("ok").
		End()
}
