// Package validation 基于 validator/v10 的字段校验，输出按字段分组的可读错误信息。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Error 字段 -> 错误信息列表
type Error struct {
	Fields map[string][]string `json:"errors"`
}

func New() *Error {
	return &Error{Fields: make(map[string][]string)}
}

func (e *Error) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *Error) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Has 某个字段是否有错误
func (e *Error) Has(field string) bool {
	return e != nil && len(e.Fields[field]) > 0
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil 没有字段错误时返回 nil，便于直接作为 error 返回
func (e *Error) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Struct 校验结构体，把 validator 的错误合并进 into；into 为 nil 时新建
func Struct(v any, into *Error) *Error {
	if into == nil {
		into = New()
	}
	err := validate.Struct(v)
	if err == nil {
		return into
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		into.Add("_", err.Error())
		return into
	}
	for _, fe := range verrs {
		// 同一字段已有错误（例如类型解析失败）时不再叠加
		if into.Has(fe.Field()) {
			continue
		}
		into.Add(fe.Field(), message(fe))
	}
	return into
}

func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("The %s field must be at least %s.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("The %s field must not be greater than %s.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("The %s field must be a valid URL.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
