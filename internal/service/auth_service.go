package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/logger"
	"github.com/medscan/scangate/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const wecomAPIBase = "https://qyapi.weixin.qq.com/cgi-bin"

// UserStore is the user persistence surface the auth flows need.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByWxUserID(ctx context.Context, wxUserID string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

type AuthService struct {
	users      UserStore
	tokenCache repository.TokenCache
	http       *resty.Client
	cfg        *config.Config
}

func NewAuthService(users UserStore, tokenCache repository.TokenCache, cfg *config.Config) *AuthService {
	timeout := 10 * time.Second
	if cfg.WeCom.HTTPTimeoutMs > 0 {
		timeout = time.Duration(cfg.WeCom.HTTPTimeoutMs) * time.Millisecond
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &AuthService{
		users:      users,
		tokenCache: tokenCache,
		http:       client,
		cfg:        cfg,
	}
}

// IssueToken signs a bearer token for the user.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	expireHours := s.cfg.Auth.JWTExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Duration(expireHours) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return "", apperrors.Wrap(err)
	}
	return signed, nil
}

// ResolveToken validates a bearer token and loads its user. Inactive accounts
// are rejected here so every authenticated route sees live users only.
func (s *AuthService) ResolveToken(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.NewUnauthenticated("登录状态无效或已过期，请重新登录")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.NewUnauthenticated("登录状态无效或已过期，请重新登录")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, apperrors.NewUnauthenticated("登录状态无效或已过期，请重新登录")
	}
	var userID int64
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil {
		return nil, apperrors.NewUnauthenticated("登录状态无效或已过期，请重新登录")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			return nil, apperrors.NewUnauthenticated("用户不存在，请重新登录")
		}
		return nil, apperrors.Wrap(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewForbidden("账号已停用，请联系管理员")
	}
	return user, nil
}

// LoginLocal authenticates a username/password account. The very first login
// with the configured bootstrap credentials creates the sys_admin account.
func (s *AuthService) LoginLocal(ctx context.Context, username, password string) (*model.User, string, error) {
	if username == "" || password == "" {
		return nil, "", apperrors.NewValidation("用户名和密码不能为空")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if err != repository.ErrRecordNotFound {
			return nil, "", apperrors.Wrap(err)
		}
		user, err = s.bootstrapAdmin(ctx, username, password)
		if err != nil {
			return nil, "", err
		}
	}

	if user.PasswordHash == nil {
		return nil, "", apperrors.NewUnauthenticated("用户名或密码错误")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), truncateForBcrypt(password)); err != nil {
		return nil, "", apperrors.NewUnauthenticated("用户名或密码错误")
	}
	if !user.IsActive {
		return nil, "", apperrors.NewForbidden("账号已停用，请联系管理员")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) bootstrapAdmin(ctx context.Context, username, password string) (*model.User, error) {
	if s.cfg.Auth.AdminUsername == "" ||
		username != s.cfg.Auth.AdminUsername || password != s.cfg.Auth.AdminPassword {
		return nil, apperrors.NewUnauthenticated("用户名或密码错误")
	}
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	hashStr := string(hash)
	user := &model.User{
		Username:     &username,
		PasswordHash: &hashStr,
		RealName:     "系统管理员",
		Role:         model.RoleSysAdmin,
		IsActive:     true,
		CreatedAt:    localtime.NowUTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.Wrap(err)
	}
	logger.Info("bootstrap admin account created", "username", username)
	return user, nil
}

// bcrypt only reads the first 72 bytes; truncate explicitly so newer library
// versions that reject longer inputs behave the same as older ones did.
func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

type wecomTokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type wecomUserInfoResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	UserID  string `json:"userid"`
}

// LoginWeCom exchanges an OAuth callback code for a local session: code →
// WeCom member id → local user (created on first sight) → bearer token.
func (s *AuthService) LoginWeCom(ctx context.Context, code string) (*model.User, string, error) {
	if code == "" {
		return nil, "", apperrors.NewValidation("缺少授权码")
	}
	if s.cfg.WeCom.CorpID == "" || s.cfg.WeCom.Secret == "" {
		return nil, "", apperrors.New(apperrors.ErrUpstream, "企业微信登录未配置", nil)
	}

	accessToken, err := s.wecomAccessToken(ctx)
	if err != nil {
		return nil, "", err
	}

	var info wecomUserInfoResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": accessToken,
			"code":         code,
		}).
		SetResult(&info).
		Get(wecomAPIBase + "/auth/getuserinfo")
	if err != nil {
		return nil, "", apperrors.New(apperrors.ErrUpstream, "企业微信服务暂不可用，请稍后重试", err)
	}
	if resp.IsError() || info.ErrCode != 0 {
		logger.Warn("wecom getuserinfo rejected", "errcode", info.ErrCode, "errmsg", info.ErrMsg)
		return nil, "", apperrors.NewUnauthenticated("企业微信授权失败，请重新登录")
	}
	if info.UserID == "" {
		return nil, "", apperrors.NewUnauthenticated("无法识别企业微信成员身份")
	}

	user, err := s.users.GetByWxUserID(ctx, info.UserID)
	if err != nil {
		if err != repository.ErrRecordNotFound {
			return nil, "", apperrors.Wrap(err)
		}
		wxID := info.UserID
		user = &model.User{
			WxUserID:  &wxID,
			RealName:  info.UserID,
			Role:      model.RoleUser,
			IsActive:  true,
			CreatedAt: localtime.NowUTC(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, "", apperrors.Wrap(err)
		}
		logger.Info("wecom user provisioned", "wx_userid", info.UserID, "user_id", user.ID)
	}
	if !user.IsActive {
		return nil, "", apperrors.NewForbidden("账号已停用，请联系管理员")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// wecomAccessToken returns the application access token, cached so concurrent
// nodes share one refresh.
func (s *AuthService) wecomAccessToken(ctx context.Context) (string, error) {
	if token, ok := s.tokenCache.Get(ctx); ok {
		return token, nil
	}

	var out wecomTokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"corpid":     s.cfg.WeCom.CorpID,
			"corpsecret": s.cfg.WeCom.Secret,
		}).
		SetResult(&out).
		Get(wecomAPIBase + "/gettoken")
	if err != nil {
		return "", apperrors.New(apperrors.ErrUpstream, "企业微信服务暂不可用，请稍后重试", err)
	}
	if resp.IsError() || out.ErrCode != 0 || out.AccessToken == "" {
		logger.Error("wecom gettoken failed", "errcode", out.ErrCode, "errmsg", out.ErrMsg)
		return "", apperrors.New(apperrors.ErrUpstream, "企业微信服务暂不可用，请稍后重试", nil)
	}

	// Refresh a minute early so a token never expires mid-request.
	ttl := time.Duration(out.ExpiresIn-60) * time.Second
	s.tokenCache.Set(ctx, out.AccessToken, ttl)
	return out.AccessToken, nil
}
