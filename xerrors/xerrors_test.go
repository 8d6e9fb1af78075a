package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	// nil 错误应返回 nil
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	// 包装后的错误应包含消息
	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err) = nil，期望非 nil")
	}
	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "context: base error")
	}

	// 应保留错误链
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	// nil 错误应返回 nil
	if err := Wrapf(nil, "server %s", "mcp-fs"); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	// 包装后的错误应包含格式化消息
	base := errors.New("unreachable")
	wrapped := Wrapf(base, "server %s", "mcp-fs")
	if wrapped.Error() != "server mcp-fs: unreachable" {
		t.Errorf("Wrapf(err).Error() = %q，期望 %q", wrapped.Error(), "server mcp-fs: unreachable")
	}
}

func TestWithCode(t *testing.T) {
	// nil 错误应返回 nil
	if err := WithCode(nil, "CODE"); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	// 带码错误应包含 code
	base := errors.New("circuit open")
	coded := WithCode(base, "CIRCUIT_OPEN")
	if coded.Error() != "[CIRCUIT_OPEN] circuit open" {
		t.Errorf("WithCode(err).Error() = %q，期望 %q", coded.Error(), "[CIRCUIT_OPEN] circuit open")
	}

	// GetCode 应能提取 code
	if code := GetCode(coded); code != "CIRCUIT_OPEN" {
		t.Errorf("GetCode(coded) = %q，期望 %q", code, "CIRCUIT_OPEN")
	}

	// 包装后的带码错误依然应有 code
	wrapped := Wrap(coded, "call failed")
	if code := GetCode(wrapped); code != "CIRCUIT_OPEN" {
		t.Errorf("GetCode(wrapped) = %q，期望 %q", code, "CIRCUIT_OPEN")
	}
}

func TestMust(t *testing.T) {
	// 无错误应返回值
	v := Must(42, nil)
	if v != 42 {
		t.Errorf("Must(42, nil) = %d，期望 42", v)
	}

	// 有错误应 panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, errors.New("boom"))
}

func TestCollector(t *testing.T) {
	var c Collector
	c.Collect(nil)
	if c.Err() != nil {
		t.Errorf("Collect(nil) 后 Err() = %v，期望 nil", c.Err())
	}

	first := errors.New("first")
	second := errors.New("second")
	c.Collect(first)
	c.Collect(second)
	if c.Err() != first {
		t.Errorf("Err() = %v，期望保留第一个错误", c.Err())
	}
}

func TestCombine(t *testing.T) {
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	one := errors.New("one")
	if err := Combine(nil, one); err != one {
		t.Errorf("Combine(nil, one) = %v，期望 one", err)
	}

	two := errors.New("two")
	combined := Combine(one, two)
	var multi *MultiError
	if !errors.As(combined, &multi) {
		t.Fatalf("Combine(one, two) 类型 = %T，期望 *MultiError", combined)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("len(multi.Errors) = %d，期望 2", len(multi.Errors))
	}
	if !errors.Is(combined, two) {
		t.Error("errors.Is(combined, two) = false，期望 true")
	}
}
