package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionTokenHeader = "X-Session-Token"
	bearerPrefix       = "Bearer "

	contextKeyUserID       = "user_id"
	contextKeySessionToken = "session_token"
)

var (
	// ErrInvalidToken reports a bearer token that failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySigningKey reports a validator built without a key.
	ErrEmptySigningKey = errors.New("jwt signing key cannot be empty")
)

// TokenValidator checks HS256 bearer tokens issued by the identity provider.
type TokenValidator struct {
	signingKey []byte
	issuer     string
}

// NewTokenValidator returns a validator for tokens signed with signingKey by issuer.
func NewTokenValidator(signingKey []byte, issuer string) (*TokenValidator, error) {
	if len(signingKey) == 0 {
		return nil, ErrEmptySigningKey
	}
	return &TokenValidator{signingKey: signingKey, issuer: issuer}, nil
}

// UserID validates token and returns its subject.
func (validator *TokenValidator) UserID(token string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if validator.issuer != "" {
		options = append(options, jwt.WithIssuer(validator.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return validator.signingKey, nil
	}, options...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}

// authenticate resolves the caller. A present but invalid bearer token is rejected;
// an absent one leaves the request anonymous or guest.
func authenticate(validator *TokenValidator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if header := ctx.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, bearerPrefix) {
				abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized)
				return
			}
			userID, err := validator.UserID(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
			if err != nil {
				abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized)
				return
			}
			ctx.Set(contextKeyUserID, userID)
		}
		if sessionToken := strings.TrimSpace(ctx.GetHeader(sessionTokenHeader)); sessionToken != "" {
			ctx.Set(contextKeySessionToken, sessionToken)
		}
		ctx.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetString(contextKeyUserID) == "" {
			abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized)
			return
		}
		ctx.Next()
	}
}

func requireIdentity() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetString(contextKeyUserID) == "" && ctx.GetString(contextKeySessionToken) == "" {
			abortWithError(ctx, http.StatusBadRequest, errorCodeMissingIdentity)
			return
		}
		ctx.Next()
	}
}

func walletUser(ctx *gin.Context) (wallet.UserID, error) {
	return wallet.NewUserID(ctx.GetString(contextKeyUserID))
}

func cartIdentity(ctx *gin.Context) (cart.Identity, error) {
	return cart.IdentityFrom(ctx.GetString(contextKeyUserID), ctx.GetString(contextKeySessionToken))
}

// ownsCart accepts either credential of the caller, so a signed-in user can still reach a guest cart before merging.
func ownsCart(ctx *gin.Context, owned cart.Cart) bool {
	if owned.Identity == nil {
		return false
	}
	switch owned.Identity.Kind() {
	case cart.IdentityUser:
		return owned.Identity.Value() == ctx.GetString(contextKeyUserID)
	case cart.IdentityGuest:
		return owned.Identity.Value() == ctx.GetString(contextKeySessionToken)
	default:
		return false
	}
}
