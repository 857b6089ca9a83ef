package model

import (
	"fmt"
	"time"
)

// LocalTime 在 JSON 中以 "YYYY-MM-DD HH:MM:SS" 格式输出的时间。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}

// String 返回与 JSON 相同的格式，便于日志输出。
func (t LocalTime) String() string {
	return time.Time(t).Format(timeFormat)
}
