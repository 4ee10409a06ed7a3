// Package errs 定义日报流水线各阶段共用的错误分类。
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork 超时、连接失败、非 2xx 响应
	ErrNetwork = errors.New("network error")
	// ErrParse XML / JSON 格式错误
	ErrParse = errors.New("parse error")
	// ErrClassificationEmpty 分类服务没有返回任何可用结果
	ErrClassificationEmpty = errors.New("classification empty")
	// ErrPublishRejected 发布接口返回 success=false
	ErrPublishRejected = errors.New("publish rejected")
	// ErrConfigMissing 缺少必需的凭证，进程应在任何网络请求前退出
	ErrConfigMissing = errors.New("config missing")
)

// Error 把分类（Kind）、操作名与底层错误绑在一起，errors.Is 对 Kind 和 Err 都成立。
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Network(op string, err error) error { return wrap(ErrNetwork, op, err) }

func Parse(op string, err error) error { return wrap(ErrParse, op, err) }

func ClassificationEmpty(op string, err error) error {
	return wrap(ErrClassificationEmpty, op, err)
}

func PublishRejected(op string, err error) error { return wrap(ErrPublishRejected, op, err) }

// ConfigMissing 列出所有缺失的变量名
func ConfigMissing(names ...string) error {
	return wrap(ErrConfigMissing, "config", fmt.Errorf("required: %v", names))
}

// IsNetwork 用于重试判断：只有网络类错误值得重试
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
