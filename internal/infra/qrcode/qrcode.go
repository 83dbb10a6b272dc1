// Package qrcode は受け取り用QRコードのPNGを作る。
package qrcode

import (
	"errors"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const defaultSize = 256

var ErrEmptyContent = errors.New("qrcode: empty content")

// PickupContent はQRに埋め込む文字列
func PickupContent(orderID int64, orderNumber string) string {
	return fmt.Sprintf("cafe-order:%d:%s", orderID, orderNumber)
}

// PNG はMedium補正でPNGを返す。size<=0 は256px。
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := qr.Encode(content, qr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qrcode: %w", err)
	}
	return png, nil
}
