package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/jwt"
)

const supabaseService = "supabase"

// Supabase регистрирует и аутентифицирует пользователей через Supabase Auth.
// Токены проверяются локально секретом проекта.
type Supabase struct {
	baseURL    string
	anonKey    string
	maker      jwt.Maker
	httpClient *http.Client
}

// NewSupabase создает провайдер Supabase.
func NewSupabase(baseURL, anonKey, jwtSecret string) *Supabase {
	return &Supabase{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		maker:      jwt.NewJWTMaker(jwtSecret, 0),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Supabase) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, &apperr.UpstreamError{Service: supabaseService, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, data, err
}

func supabaseMessage(body []byte, fallback int) string {
	for _, path := range []string{"msg", "error_description", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return http.StatusText(fallback)
}

// SignUp регистрирует пользователя и возвращает его идентификатор.
func (s *Supabase) SignUp(ctx context.Context, email, password string) (string, error) {
	const op = "identity.Supabase.SignUp"

	status, body, err := s.post(ctx, "/auth/v1/signup", credentials{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if status >= 300 {
		msg := supabaseMessage(body, status)
		code := gjson.GetBytes(body, "error_code").String()
		if code == "user_already_exists" || strings.Contains(strings.ToLower(msg), "already registered") {
			return "", fmt.Errorf("%s: %w", op, apperr.ErrDuplicateUser)
		}
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("%s: %w: %s", op, apperr.ErrValidation, msg)
		}
		return "", fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: supabaseService, StatusCode: status, Message: msg})
	}

	id := gjson.GetBytes(body, "user.id").String()
	if id == "" {
		id = gjson.GetBytes(body, "id").String()
	}
	if id == "" {
		return "", fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: supabaseService, StatusCode: status, Message: "user id missing in response"})
	}
	return id, nil
}

// SignIn выполняет вход по паролю и возвращает токен доступа Supabase.
func (s *Supabase) SignIn(ctx context.Context, email, password string) (token, userID string, err error) {
	const op = "identity.Supabase.SignIn"

	status, body, err := s.post(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return "", "", fmt.Errorf("%s: %w", op, apperr.ErrAuthentication)
	}
	if status >= 300 {
		return "", "", fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: supabaseService, StatusCode: status, Message: supabaseMessage(body, status)})
	}

	res := gjson.ParseBytes(body)
	token = res.Get("access_token").String()
	userID = res.Get("user.id").String()
	if token == "" || userID == "" {
		return "", "", fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: supabaseService, StatusCode: status, Message: "session missing in response"})
	}
	return token, userID, nil
}

// ValidateToken проверяет подпись токена Supabase и возвращает sub.
func (s *Supabase) ValidateToken(_ context.Context, token string) (string, error) {
	const op = "identity.Supabase.ValidateToken"

	claims, err := s.maker.ParseToken(token)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, apperr.ErrAuthentication, err)
	}
	return claims.UserID(), nil
}
