// Чтение переменных окружения.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Exist - возвращает true, если переменная key задана, даже пустой.
func Exist(key string) bool {
	_, exist := os.LookupEnv(key)
	return exist
}

// GetEnv - возвращает значение строковой переменной без пробелов по краям.
func GetEnv(key string) string {
	val, _ := os.LookupEnv(key)
	return strings.TrimSpace(val)
}

// GetIntEnv - возвращает значение числовой переменной. При ошибке разбора возвращается 0,
// и ReadConfig подставляет значение по умолчанию.
func GetIntEnv(key string) int {
	v, err := strconv.Atoi(GetEnv(key))
	if err != nil {
		return 0
	}
	return v
}

// GetBoolEnv - возвращает значение логической переменной. При ошибке разбора возвращается false
func GetBoolEnv(key string) bool {
	v, err := strconv.ParseBool(GetEnv(key))
	if err != nil {
		return false
	}
	return v
}
