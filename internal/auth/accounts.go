package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-ledger/internal/ledger"
	"sales-ledger/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Accounts manages staff users and issues their tokens.
type Accounts struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
}

func NewAccounts(db *gorm.DB, secret string, ttl time.Duration) *Accounts {
	return &Accounts{DB: db, Secret: []byte(secret), TTL: ttl}
}

type RegisterInput struct {
	Name        string          `json:"name"`
	Username    string          `json:"username"`
	Phone       string          `json:"phone"`
	Password    string          `json:"password"`
	Role        Role            `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

// Register stores a new user with a bcrypt hash. An empty role means marketer.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = RoleMarketer
	}
	switch {
	case len(in.Username) < 3:
		return nil, fmt.Errorf("%w: username needs at least 3 characters", ledger.ErrValidation)
	case len(in.Password) < 6:
		return nil, fmt.Errorf("%w: password needs at least 6 characters", ledger.ErrValidation)
	case !in.Role.Valid():
		return nil, fmt.Errorf("%w: unknown role %q", ledger.ErrValidation, in.Role)
	}
	if _, err := Merge(in.Role, in.Permissions); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}

	db := a.DB.WithContext(ctx)
	var taken int64
	if err := db.Model(&models.User{}).Where("username = ?", in.Username).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, fmt.Errorf("%w: username %q is taken", ledger.ErrDuplicate, in.Username)
	}

	// 1. Hash the password
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// 2. Save
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.Username
	}
	user := models.User{
		Name:         name,
		Username:     in.Username,
		Phone:        in.Phone,
		PasswordHash: string(hashed),
		Role:         string(in.Role),
		Permissions:  toJSONMap(in.Permissions),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q is taken", ledger.ErrDuplicate, in.Username)
		}
		return nil, err
	}
	return &user, nil
}

// Session is what a successful login returns.
type Session struct {
	Token       string          `json:"token"`
	User        models.User     `json:"user"`
	Permissions map[string]bool `json:"permissions"`
}

// Login verifies the password and issues a token carrying the user's
// effective capabilities.
func (a *Accounts) Login(ctx context.Context, username, password string) (*Session, error) {
	var user models.User
	if err := a.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	caps, err := Capabilities(&user)
	if err != nil {
		return nil, err
	}
	token, err := GenerateToken(a.Secret, a.TTL, user.ID, user.Name, Role(user.Role), caps)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user, Permissions: caps.Map()}, nil
}

// UpdatePermissions replaces the user's role (when set) and overrides.
func (a *Accounts) UpdatePermissions(ctx context.Context, userID uint, role *Role, overrides map[string]bool) (*models.User, error) {
	var user models.User
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ledger.ErrNotFound, userID)
			}
			return err
		}
		if role != nil {
			if !role.Valid() {
				return fmt.Errorf("%w: unknown role %q", ledger.ErrValidation, *role)
			}
			user.Role = string(*role)
		}
		if _, err := Merge(Role(user.Role), overrides); err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
		}
		user.Permissions = toJSONMap(overrides)
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"role":        user.Role,
			"permissions": user.Permissions,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *Accounts) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := a.DB.WithContext(ctx).Order("id").Find(&users).Error
	return users, err
}

// Capabilities resolves the user's role defaults and stored overrides.
func Capabilities(user *models.User) (Capability, error) {
	overrides, err := ParseOverrides(user.Permissions)
	if err != nil {
		return 0, fmt.Errorf("user %d: %w", user.ID, err)
	}
	return Merge(Role(user.Role), overrides)
}

func toJSONMap(overrides map[string]bool) datatypes.JSONMap {
	m := datatypes.JSONMap{}
	for k, v := range overrides {
		m[k] = v
	}
	return m
}
