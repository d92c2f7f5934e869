package collector

import "errors"

var (
	// ErrProviderUnavailable 当前运行环境下该 provider 不可用（未配置地址或密钥）
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrEmptyResult 请求成功但没有拿到任何条目
	ErrEmptyResult = errors.New("empty result")
	// ErrUnexpectedStatus 非 200 响应
	ErrUnexpectedStatus = errors.New("unexpected status")
)
