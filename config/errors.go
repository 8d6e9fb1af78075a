package config

import "github.com/codingjam/bridge-mcp/xerrors"

// ErrValidationFailed 验证失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// WrapValidationError 包装验证错误
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Join(ErrValidationFailed, err)
}

// WrapLoadError 包装加载错误
func WrapLoadError(err error, message string) error {
	if err == nil {
		return nil
	}
	return xerrors.Wrapf(err, "failed to load config: %s", message)
}
