package khqr

import qrcode "github.com/skip2/go-qrcode"

// ImagePNG renders a payload as a scannable QR code PNG of the given pixel
// size.
func ImagePNG(qr string, size int) ([]byte, error) {
	return qrcode.Encode(qr, qrcode.Medium, size)
}
