package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt converts integers, floats, strings and byte slices to int.
// Unparseable input yields 0.
func ToInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case uint32:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(v))
		return i
	case []byte:
		i, _ := strconv.Atoi(strings.TrimSpace(string(v)))
		return i
	default:
		i, _ := strconv.Atoi(fmt.Sprint(v))
		return i
	}
}

// ToBool converts flags such as query parameters to bool.
// It accepts bool, integers (1=true) and the strings "1", "true", "yes" and "on".
func ToBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int, int64, int32, uint, uint64, uint32:
		return ToInt(v) == 1
	case string:
		return truthy(v)
	case []byte:
		return truthy(string(v))
	default:
		return false
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
