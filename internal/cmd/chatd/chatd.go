// Package chatd parses chatd command flags and composes the realtime chat
// service entrypoint.
package chatd

import (
	"context"
	"flag"
	"fmt"

	"github.com/kothaapp/kotha/internal/chat/app"
	entrypoint "github.com/kothaapp/kotha/internal/platform/cmd"
)

// Config holds chatd command configuration.
type Config struct {
	HTTPAddr  string `env:"KOTHA_CHATD_HTTP_ADDR" envDefault:":8080"`
	DBPath    string `env:"KOTHA_DB_PATH"         envDefault:"kotha.db"`
	JWTSecret string `env:"KOTHA_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chatd HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "connection token signing secret")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and serves realtime connections until the context
// ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChatd, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			HTTPAddr:  cfg.HTTPAddr,
			DBPath:    cfg.DBPath,
			JWTSecret: cfg.JWTSecret,
		}); err != nil {
			return fmt.Errorf("serve chatd: %w", err)
		}
		return nil
	})
}
