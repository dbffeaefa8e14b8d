// Package validation はリクエスト入力の構造体バリデーションを提供する。
// 最初の違反で打ち切らず、すべての違反をまとめて返す。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/todoapi/internal/model"
)

// validate はプロセス全体で共有する。validator.Validateは並行利用に対して安全で、
// 構造体ごとのタグ解析結果をキャッシュする。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名にはJSONキー名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct はvalidateタグに従って構造体を検証する。
// 違反がなければnilを返す。違反はフィールド定義順に並ぶ。
func Struct(s any) []model.FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError はプログラミングミスのみで発生する
		return []model.FieldError{{Field: "", Message: err.Error()}}
	}

	return toFieldErrors("", verrs)
}

// Var は単一の値をtagで検証する。nameはエラーのフィールド名になる。
// 部分更新のように、構造体の形を取らない入力の検証に使う。
func Var(name string, value any, tag string) []model.FieldError {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.FieldError{{Field: name, Message: err.Error()}}
	}
	return toFieldErrors(name, verrs)
}

func toFieldErrors(name string, verrs validator.ValidationErrors) []model.FieldError {
	fields := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := name
		if field == "" {
			field = fe.Field()
		}
		fields = append(fields, model.FieldError{
			Field:   field,
			Message: message(field, fe),
		})
	}
	return fields
}

// message はタグごとの人間向けメッセージを組み立てる。
func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "please enter a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "uuid4":
		return fmt.Sprintf("invalid %s", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
