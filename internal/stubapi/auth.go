package stubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/logger"
)

// Claims are the JWT claims issued by the stub service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

type ContextKey string

// UserIDKey is the context key of the authenticated user's ID.
const UserIDKey ContextKey = "userID"

type Auth struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuth(signingKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
	}
}

func (a *Auth) buildJWTString(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (a *Auth) userIDFromRequest(request *http.Request) (string, error) {
	header := request.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", fmt.Errorf("no bearer token")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return a.signingKey, nil
		},
	)
	if err != nil {
		return "", err
	}
	// Expiry is checked by the parser.
	if !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("invalid token")
	}

	return claims.UserID, nil
}

// AuthenticateUser rejects requests without a valid bearer token with 401 and puts
// the user ID of valid ones into the request context.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID, err := a.userIDFromRequest(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.userIDFromRequest()`: ", zap.Error(err))
			http.Error(response, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}
