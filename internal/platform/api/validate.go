package api

import (
	"encoding/json"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var vnPhoneRe = regexp.MustCompile(`^0\d{9}$`)

// NormalizePhone: 空白をすべて除去する
func NormalizePhone(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// IsVNPhone: 0 始まり10桁（空白は無視）
func IsVNPhone(s string) bool {
	return vnPhoneRe.MatchString(NormalizePhone(s))
}

// RegisterValidators: gin のバリデータにカスタムタグを登録する。main から一度だけ呼ぶ。
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		return IsVNPhone(fl.Field().String())
	})
}

// BindPatch: 許可リスト外のキーや空ボディを 400 にしてから dst にデコードする
func BindPatch(c *gin.Context, dst any, allowed ...string) error {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ErrInvalid("failed to read body")
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return ErrInvalid("invalid json")
	}
	if err := CheckAllowedKeys(keys, allowed...); err != nil {
		return err
	}
	// null はポインタが nil のまま何も更新されないので受け付けない。消すときは "" を送る
	var nulls []string
	for k, v := range keys {
		if strings.TrimSpace(string(v)) == "null" {
			nulls = append(nulls, k)
		}
	}
	if len(nulls) > 0 {
		sort.Strings(nulls)
		return ErrInvalid("null is not accepted for: " + strings.Join(nulls, ", ") + ` (send "" to clear a text field)`)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrInvalid("invalid json: " + err.Error())
	}
	return nil
}

func CheckAllowedKeys(keys map[string]json.RawMessage, allowed ...string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	var unknown []string
	valid := 0
	for k := range keys {
		if _, hit := ok[k]; hit {
			valid++
		} else {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ErrInvalid("unknown fields: " + strings.Join(unknown, ", "))
	}
	if valid == 0 {
		return ErrInvalid("No valid fields to update")
	}
	return nil
}
