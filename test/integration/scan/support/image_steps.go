package support

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// RegisterImageSteps registers the steps that prepare input images.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a (\d+)x(\d+) (PNG|JPEG) containing a QR code encoding "([^"]*)"$`, testCtx.aQRImage)
	sc.Step(`^a (\d+)x(\d+) (PNG|JPEG) photo of a blank wall$`, testCtx.aBlankWall)
	sc.Step(`^a JPEG of a QR code encoding "([^"]*)" truncated to (\d+)% of its bytes$`, testCtx.aTruncatedJPEG)
}

func (testCtx *TestContext) aQRImage(width, height int, format, text string) error {
	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(text, gozxing.BarcodeFormat_QR_CODE, width, height, nil)
	if err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}
	return testCtx.setImage(imaging.Clone(matrix), format)
}

func (testCtx *TestContext) aBlankWall(width, height int, format string) error {
	wall := imaging.New(width, height, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	return testCtx.setImage(wall, format)
}

func (testCtx *TestContext) aTruncatedJPEG(text string, percent int) error {
	if err := testCtx.aQRImage(400, 400, "JPEG", text); err != nil {
		return err
	}
	keep := len(testCtx.ImageData) * percent / 100
	testCtx.ImageData = testCtx.ImageData[:keep]
	return nil
}

func (testCtx *TestContext) setImage(img image.Image, format string) error {
	f := imaging.PNG
	ext := ".png"
	if strings.EqualFold(format, "JPEG") {
		f = imaging.JPEG
		ext = ".jpg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	testCtx.ImageName = "input" + ext
	testCtx.ImageData = buf.Bytes()
	return nil
}
