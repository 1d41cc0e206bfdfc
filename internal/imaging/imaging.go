// Package imaging содержит утилиты обработки изображений: даунскейл
// полноразмерных кадров в превью с сохранением пропорций.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // регистрация декодера PNG

	xdraw "golang.org/x/image/draw"
)

const previewJPEGQuality = 80

// FitDimensions вписывает изображение srcW x srcH в рамку boxW x boxH
// с сохранением пропорций. Изображение меньше рамки не увеличивается.
func FitDimensions(srcW, srcH, boxW, boxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if srcW <= boxW && srcH <= boxH {
		return srcW, srcH
	}

	scaleW := float64(boxW) / float64(srcW)
	scaleH := float64(boxH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// MakePreview декодирует изображение, вписывает его в рамку boxW x boxH
// и возвращает результат в JPEG.
func MakePreview(data []byte, boxW, boxH int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	srcBounds := src.Bounds()
	dstW, dstH := FitDimensions(srcBounds.Dx(), srcBounds.Dy(), boxW, boxH)
	if dstW == 0 || dstH == 0 {
		return nil, fmt.Errorf("source image has empty bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, srcBounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
