// Package repository 定义了两个存储层（内联、分块）的数据访问接口和实现。
package repository

import "errors"

var (
	// ErrNotFound 表示指定 checksum 或 id 的记录不存在。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 表示存储层的唯一约束拒绝了写入（同一 checksum 已存在）。
	ErrDuplicate = errors.New("duplicate checksum")
)
