package handoff

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// EncodeQR renders the scannable URL as a PNG. Medium error correction keeps
// the code scannable on small phone screens without inflating the image.
func EncodeQR(scanURL string) ([]byte, error) {
	if scanURL == "" {
		return nil, errors.New("scan url is required")
	}
	return qrcode.Encode(scanURL, qrcode.Medium, qrSize)
}
