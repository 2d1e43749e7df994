// tokengen 为账户签发访问令牌，联调时使用
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"crowdfunding/internal/config"
	"crowdfunding/internal/handler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	account := flag.String("account", "", "调用者账户，写入 sub")
	ttl := flag.Duration("ttl", 24*time.Hour, "有效期")
	flag.Parse()

	if *account == "" {
		fmt.Fprintln(os.Stderr, "-account 不能为空")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	token, err := handler.SignToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, *account, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发令牌失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
