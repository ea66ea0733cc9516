package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
)

var (
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenExpired        = errors.New("token expired")
	ErrVerifierUnavailable = errors.New("identity verifier unavailable")
)

// Claims is the JWT payload.
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens at login.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID and its expiry.
func (i *Issuer) Issue(userID uint) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    i.issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verifier resolves a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier checks the signature and expiry, then loads the user's active flag.
type JWTVerifier struct {
	secret []byte
	issuer string
	db     *gorm.DB
}

func NewJWTVerifier(secret, issuer string, db *gorm.DB) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, db: db}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return Identity{}, ErrTokenInvalid
	}

	var user models.User
	err = v.db.WithContext(ctx).Select("id", "is_active").First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrTokenInvalid
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	return Identity{UserID: user.ID, IsActive: user.IsActive}, nil
}

// VerifyError maps a Verify failure onto the error taxonomy.
func VerifyError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return apperr.Wrap(apperr.KindUnauthenticated, "session expired, please log in again", err)
	case errors.Is(err, ErrVerifierUnavailable):
		return apperr.Internal("could not verify identity", err)
	default:
		return apperr.Wrap(apperr.KindUnauthenticated, "invalid authentication token", err)
	}
}
