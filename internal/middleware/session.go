package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/duedatechanger/api/pkg/response"
)

const SessionCookie = "ddc_session"

// SessionMiddleware issues and checks the token that carries an LTI launch
// into later requests.
type SessionMiddleware struct {
	secret     string
	expiration time.Duration
}

type SessionClaims struct {
	UserID   string   `json:"userId"`
	CourseID string   `json:"courseId"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

func NewSessionMiddleware(secret string, expiration time.Duration) *SessionMiddleware {
	return &SessionMiddleware{secret: secret, expiration: expiration}
}

// Issue signs a session for a verified launch.
func (m *SessionMiddleware) Issue(userID, courseID string, roles []string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:   userID,
		CourseID: courseID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "due-date-changer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// SetCookie stores the session token. The tool runs inside an LMS iframe, so
// the cookie must be SameSite=None.
func (m *SessionMiddleware) SetCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(m.expiration),
		Secure:   true,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// Authenticate accepts the session cookie or a bearer token. When the route
// has a :courseId parameter it must match the course of the launch.
func (m *SessionMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(SessionCookie)
		if tokenString == "" {
			parts := strings.SplitN(c.Get("Authorization"), " ", 2)
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			return response.Unauthorized(c, "Session missing. Launch the tool from your course.")
		}

		token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.secret), nil
		})
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired session")
		}

		claims, ok := token.Claims.(*SessionClaims)
		if !ok || !token.Valid {
			return response.Unauthorized(c, "Invalid session claims")
		}

		if courseID := c.Params("courseId"); courseID != "" && courseID != claims.CourseID {
			return response.Forbidden(c, "Session is not valid for this course")
		}

		c.Locals("userId", claims.UserID)
		c.Locals("courseId", claims.CourseID)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}
