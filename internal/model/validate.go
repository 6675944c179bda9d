package model

import (
	"fmt"
	"unicode/utf8"
)

// 文字列・数値カラムの上限。スキーマ定義と一致させる。
const (
	// MaxTextLength は名前、メールアドレス、注文明細の説明の最大文字数（VARCHAR(255)）。
	MaxTextLength = 255
	// MaxImageRefLength はメニュー画像参照の最大文字数（VARCHAR(1024)）。
	MaxImageRefLength = 1024
	// MaxPrice は価格の上限（NUMERIC(12, 8)）。
	MaxPrice = 9999.99999999
)

// CheckLength はvalueがmax文字以内であることを検証する。
// 文字数はバイト数ではなくUnicodeコードポイント数で数える。
func CheckLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return NewInvalidRequestError(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}

// CheckPrice は価格が0以上MaxPrice以下であることを検証する。
func CheckPrice(price float64) error {
	if price < 0 {
		return NewInvalidRequestError("price must not be negative")
	}
	if price > MaxPrice {
		return NewInvalidRequestError(fmt.Sprintf("price must be at most %.8f", MaxPrice))
	}
	return nil
}
