package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lcs-classroom/backend/config"
	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	pkgerrors "lcs-classroom/backend/pkg/errors"
	"lcs-classroom/backend/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrDuplicateIdentity  = errors.New("用户名或邮箱已被注册")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrInvalidInput       = errors.New("用户名、邮箱和密码不能为空")
	ErrPasswordTooLong    = errors.New("密码不能超过 72 字节")
)

// bcrypt 只接受不超过 72 字节的密码，超出时 GenerateFromPassword 直接报错
const maxPasswordBytes = 72

// 邮箱不存在时仍做一次 bcrypt 比对，使两种失败路径耗时相近
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenBlacklist Token 吊销存储（生产环境为 Redis）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// Logout 吊销 Token 直至其自然过期；黑名单不可用时仅记录日志
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error)
	// EnsureAdmin 按配置创建初始管理员，已存在时跳过
	EnsureAdmin(ctx context.Context) error
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}
	// binding 的 max 按字符计数，多字节密码需在此按字节再校验
	if len(req.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	// 1. 重复检查（并发注册由唯一索引兜底）
	if _, err := s.repo.User.GetByEmailOrUsername(ctx, email, username); err == nil {
		return nil, ErrDuplicateIdentity
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 角色
	role := s.resolveRole(req.Role)

	// 3. 密码哈希
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrDuplicateIdentity
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return s.issueToken(user)
}

// resolveRole 空值或非法值回落为 student；关闭管理员自助注册时 admin 也降级为 student
func (s *authService) resolveRole(requested string) string {
	if !model.IsValidRole(requested) {
		return model.RoleStudent
	}
	if requested == model.RoleAdmin && !s.cfg.Feature.AdminSelfSignup {
		return model.RoleStudent
	}
	return requested
}

func (s *authService) bcryptCost() int {
	if s.cfg.Auth.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.cfg.Auth.BcryptCost
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token
	return s.issueToken(user)
}

func (s *authService) issueToken(user *model.User) (*dto.TokenResponse, error) {
	token, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		Token:     token,
		ExpiresIn: int(s.jwtMgr.TTL().Seconds()),
		User:      toUserResponse(user),
	}, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		// 黑名单写入失败时降级为客户端丢弃 Token
		s.logger.Warn("Token 加入黑名单失败", zap.String("jti", jti), zap.Error(err))
	}
	return nil
}

// ────────────────────── GetCurrentUser ──────────────────────

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}
	return &dto.UserDetailResponse{
		UserResponse: toUserResponse(user),
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ────────────────────── EnsureAdmin ──────────────────────

func (s *authService) EnsureAdmin(ctx context.Context) error {
	bootstrap := s.cfg.Auth.BootstrapAdmin
	email := normalizeEmail(bootstrap.Email)
	if email == "" {
		return nil
	}

	existing, err := s.repo.User.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != model.RoleAdmin {
			s.logger.Warn("初始管理员邮箱已被普通用户占用", zap.String("email", email))
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(bootstrap.Password), s.bcryptCost())
	if err != nil {
		return err
	}

	username := strings.TrimSpace(bootstrap.Username)
	if username == "" {
		username = "admin"
	}
	admin := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	if err := s.repo.User.Create(ctx, admin); err != nil {
		// 多实例同时启动时由其他实例创建
		if pkgerrors.IsDuplicateKey(err) {
			return nil
		}
		return err
	}

	s.logger.Info("已创建初始管理员", zap.String("user_id", admin.UserID), zap.String("email", email))
	return nil
}
