package domain

import (
	"fmt"
)

const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeUser = "user"
)

// RateLimitKey строит ключ счетчика в Redis: ratelimit:<scope>:<value>
func RateLimitKey(scope string, value interface{}) string {
	return fmt.Sprintf("ratelimit:%s:%v", scope, value)
}
