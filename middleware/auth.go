package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yatube/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const principalKey = "principal"

// TokenCookie is the cookie the browser flow keeps the JWT in.
const TokenCookie = "token"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the principal.
func IssueToken(secret string, p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   p.UserID.Hex(),
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the principal it was issued for.
func ParseToken(secret, tokenString string) (models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || id.IsZero() || claims.Username == "" {
		return models.Principal{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return models.Principal{UserID: id, Username: claims.Username}, nil
}

// tokenFromRequest looks at the Authorization header, then the token query
// parameter, then the token cookie.
func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// Authenticate resolves the request principal. Requests without a usable
// token continue as anonymous; RequireAuth decides what they may do.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := models.Anonymous()
		if tokenString := tokenFromRequest(c); tokenString != "" {
			p, err := ParseToken(secret, tokenString)
			if err != nil {
				logrus.WithError(err).WithField("path", c.Request.URL.Path).Debug("Ignoring invalid token")
			} else {
				principal = p
			}
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAuth redirects anonymous requests to the login page, passing the
// original path in "next".
func RequireAuth(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip middleware for OPTIONS requests (CORS preflight)
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if CurrentPrincipal(c).IsAnonymous() {
			target := loginURL + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by Authenticate, or anonymous.
func CurrentPrincipal(c *gin.Context) models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Anonymous()
}
