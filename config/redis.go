package config

import (
	"crypto/tls"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions accepts either a redis:// URL or the Azure form
// "host:port,password=...,ssl=true".
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("missing redis config")
	}
	redisOpts, err := redis.ParseURL(conn)
	if err == nil {
		return redisOpts, nil
	}
	parts := strings.Split(conn, ",")
	redisOpts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			redisOpts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				redisOpts.TLSConfig = &tls.Config{}
			}
		}
	}
	return redisOpts, nil
}
