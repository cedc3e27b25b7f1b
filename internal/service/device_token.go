package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceTokenService firma la cookie que identifica a un navegador.
type DeviceTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type DeviceClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

var (
	ErrDeviceTokenInvalid = errors.New("device token invalid")
	ErrDeviceTokenExpired = errors.New("device token expired")
)

func NewDeviceTokenService(secret string, ttl time.Duration) *DeviceTokenService {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &DeviceTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "tyforge-web",
		now:    time.Now,
	}
}

func (s *DeviceTokenService) TTL() time.Duration { return s.ttl }

// Issue crea un dispositivo nuevo y devuelve su id y cookie firmada.
func (s *DeviceTokenService) Issue() (string, string, error) {
	deviceID := uuid.NewString()
	token, err := s.Sign(deviceID)
	if err != nil {
		return "", "", err
	}
	return deviceID, token, nil
}

func (s *DeviceTokenService) Sign(deviceID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(deviceID) == "" {
		return "", ErrDeviceTokenInvalid
	}
	now := s.now().UTC()
	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse valida la cookie y devuelve el id de dispositivo.
func (s *DeviceTokenService) Parse(tokenString string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return "", ErrDeviceTokenInvalid
	}
	var claims DeviceClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrDeviceTokenExpired
		}
		return "", ErrDeviceTokenInvalid
	}
	if strings.TrimSpace(claims.DeviceID) == "" || claims.Subject != claims.DeviceID || claims.Issuer != s.issuer {
		return "", ErrDeviceTokenInvalid
	}
	return claims.DeviceID, nil
}
