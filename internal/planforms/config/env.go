package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

func Exist(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func GetEnv(key string, def ...string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func GetIntEnv(key string, def ...int) int {
	raw := GetEnv(key)
	if raw != "" {
		value, err := strconv.Atoi(raw)
		if err == nil {
			return value
		}
		slog.Warn("Parse int env", "key", key, "value", raw, "err", err)
	}
	if len(def) > 0 {
		return def[0]
	}
	return 0
}

func GetBoolEnv(key string, def ...bool) bool {
	raw := strings.ToLower(GetEnv(key))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	if len(def) > 0 {
		return def[0]
	}
	return false
}
