package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ClaimMediator = "mediator"

// Claims: данные участника из access токена. Выпуск токенов выполняет внешний сервис
// аутентификации; здесь токены проверяются, а Generate нужен для тестов и локальной отладки.
type Claims struct {
	UserID     uuid.UUID
	IsMediator bool
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	accessSecret []byte
	accessTTL    time.Duration
}

func NewTokenManager(accessSecret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		accessTTL:    accessTTL,
	}
}

// Generate формирует access токен.
func (m *TokenManager) Generate(userID uuid.UUID, isMediator bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         userID.String(),
		"iat":         now.Unix(),
		"exp":         now.Add(m.accessTTL).Unix(),
		ClaimMediator: isMediator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// ParseAccess извлекает участника из access токена.
func (m *TokenManager) ParseAccess(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неожиданный алгоритм подписи")
		}
		return m.accessSecret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, err
	}

	isMediator, _ := claims[ClaimMediator].(bool)
	return Claims{UserID: userID, IsMediator: isMediator}, nil
}
