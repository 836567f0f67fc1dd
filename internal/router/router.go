package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"postbox/internal/auth"
	apperrors "postbox/internal/errors"
	"postbox/internal/handler"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth  *handler.AuthHandler
	Users *handler.UserHandler
	Posts *handler.PostHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, jwtService *auth.JWTService, h Handlers) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	// Secured routes (require a bearer token)
	secured := api.Group("", bearerAuth(jwtService))

	secured.GET("/me", h.Users.Me)
	secured.GET("/users/:id", h.Users.GetUser)

	secured.GET("/posts", h.Posts.ListPosts)
	secured.POST("/posts", h.Posts.CreatePost)
	secured.GET("/posts/:id", h.Posts.GetPost)
	secured.PATCH("/posts/:id", h.Posts.UpdatePost)
	secured.PUT("/posts/:id", h.Posts.UpdatePost)
	secured.DELETE("/posts/:id", h.Posts.DeletePost)
}

// bearerAuth verifies "Authorization: Bearer <token>" and stores the
// auth.Identity under handler.IdentityContextKey. A missing or blank
// credential is 401; a bad or expired one is 403.
func bearerAuth(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.IdentityContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(_ echo.Context, token string) (interface{}, error) {
			return jwtService.Verify(strings.TrimSpace(token))
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			if errors.Is(err, echojwt.ErrJWTMissing) || errors.Is(err, auth.ErrTokenMissing) {
				return authError(apperrors.ErrUnauthorized)
			}
			return authError(apperrors.ErrForbidden)
		},
	})
}

func authError(err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
