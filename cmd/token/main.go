package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"match_chat/internal/models"
	"match_chat/internal/utils"
	"match_chat/pkg/config"
)

// token 以設定中的 auth.jwt_secret 簽發開發用的存取 token
func main() {
	userID := flag.String("user", "", "User ID to issue the token for")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if !models.ValidUserID(*userID) {
		fmt.Fprintln(os.Stderr, "Usage: token -user <user-id> [-ttl 24h]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set")
		os.Exit(1)
	}

	token, err := utils.GenerateToken([]byte(cfg.Auth.JWTSecret), *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
