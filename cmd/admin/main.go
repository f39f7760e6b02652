package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"dalildocs/internal/auth"
	"dalildocs/internal/config"
	"dalildocs/internal/database"
)

// 运维工具：创建普通管理员，或重置其密码。
// 主管理员由 API 启动时自举，这里不允许操作。
func main() {
	var (
		username = flag.String("username", "", "管理员用户名（必填）")
		reset    = flag.Bool("reset-password", false, "重置已有管理员密码而不是新建")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(&database.Admin{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	if *reset {
		resetPassword(db, u)
		return
	}
	createAdmin(db, u)
}

func createAdmin(db *gorm.DB, username string) {
	var existing database.Admin
	switch err := db.Where("username = ?", username).First(&existing).Error; {
	case err == nil:
		log.Fatalf("admin %q already exists", username)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query admin: %v", err)
	}

	password, err := auth.GenerateRandomPassword(12)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin := database.Admin{
		Username:     username,
		PasswordHash: hashed,
		IsMain:       false,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatalf("create admin: %v", err)
	}

	fmt.Printf("已创建管理员账号：\n")
	fmt.Printf("用户名: %s\n", username)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次，请登录后立即修改。\n")
}

func resetPassword(db *gorm.DB, username string) {
	var admin database.Admin
	if err := db.Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("admin %q not found", username)
		}
		log.Fatalf("query admin: %v", err)
	}
	if admin.IsMain {
		log.Fatal("the main admin password cannot be reset here")
	}

	password, err := auth.GenerateRandomPassword(12)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if err := db.Model(&admin).Update("password_hash", hashed).Error; err != nil {
		log.Fatalf("update password: %v", err)
	}

	fmt.Printf("已重置管理员密码：\n")
	fmt.Printf("用户名: %s\n", username)
	fmt.Printf("新密码: %s\n", password)
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
