package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dalildocs/internal/auth"
	"dalildocs/internal/config"
)

// EnsureMainAdmin 保证库中存在唯一的主管理员。
// 首次启动时按配置创建默认账号；已存在则跳过（幂等）。
// 返回值表示本次是否新建了账号。
func EnsureMainAdmin(db *gorm.DB, cfg config.BootstrapConfig) (bool, error) {
	var existing Admin
	switch err := db.Where("is_main = ?", true).First(&existing).Error; {
	case err == nil:
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return false, fmt.Errorf("query main admin: %w", err)
	}

	hashed, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}

	admin := Admin{
		Username:     cfg.AdminUsername,
		PasswordHash: hashed,
		IsMain:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, fmt.Errorf("create main admin: %w", err)
	}
	return true, nil
}
