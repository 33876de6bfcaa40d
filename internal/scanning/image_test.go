package scanning

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImageBytes(encode func(*bytes.Buffer, image.Image) error) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	It("passes PNG input through unchanged", func() {
		data := testImageBytes(func(buf *bytes.Buffer, img image.Image) error {
			return png.Encode(buf, img)
		})

		out, err := prepareImageData(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("converts JPEG input to PNG", func() {
		data := testImageBytes(func(buf *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(buf, img, nil)
		})

		out, err := prepareImageData(data, "image/jpeg")
		Expect(err).NotTo(HaveOccurred())

		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("defaults an empty content type to JPEG handling", func() {
		data := testImageBytes(func(buf *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(buf, img, nil)
		})

		_, err := prepareImageData(data, "")
		Expect(err).NotTo(HaveOccurred())
	})

	It("fails on undecodable data", func() {
		_, err := prepareImageData([]byte("not an image"), "image/jpeg")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("preprocessForOCR", func() {
	It("produces a decodable grayscale PNG", func() {
		data := testImageBytes(func(buf *bytes.Buffer, img image.Image) error {
			return png.Encode(buf, img)
		})

		out, err := preprocessForOCR(data)
		Expect(err).NotTo(HaveOccurred())

		img, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))

		r, g, b, _ := img.At(3, 5).RGBA()
		Expect(r).To(Equal(g))
		Expect(g).To(Equal(b))
	})
})

var _ = Describe("isHEICData", func() {
	It("recognizes the ftyp brands", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 8)...)
		Expect(isHEICData(data)).To(BeTrue())
	})

	It("rejects other data", func() {
		Expect(isHEICData([]byte("PNG image data, definitely"))).To(BeFalse())
	})
})

var _ = Describe("Tesseract", func() {
	It("reports an unreadable image without reaching OCR", func() {
		scanner := NewTesseract()
		_, err := scanner.ScanReceipt([]byte("garbage"), "image/jpeg")
		Expect(errors.Is(err, ErrUnreadableImage)).To(BeTrue())
	})
})
