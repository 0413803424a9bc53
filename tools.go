//go:build tools
// +build tools

// Package tools 追蹤 go generate 使用的工具相依，讓 go.mod 與 go.sum 保持一致。
package main

import (
	_ "go.uber.org/mock/mockgen"
)
