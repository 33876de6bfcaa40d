package receipt

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tealeg/xlsx/v2"
)

var _ = Describe("WriteXLSX", func() {
	var (
		items []*Item
		sheet *xlsx.Sheet
	)

	JustBeforeEach(func() {
		var buf bytes.Buffer
		Expect(WriteXLSX(&buf, items)).To(Succeed())

		file, err := xlsx.OpenBinary(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())

		var ok bool
		sheet, ok = file.Sheet["지출증빙"]
		Expect(ok).To(BeTrue(), "expected the 지출증빙 sheet")
	})

	When("exporting two items", func() {
		BeforeEach(func() {
			items = []*Item{
				{ID: "1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500, Notes: ""},
				{ID: "2", Date: "2024-03-16", MerchantName: "스타벅스", Amount: 5500, Notes: "커피"},
			}
		})

		It("writes a header row", func() {
			header := sheet.Rows[0]
			values := make([]string, len(header.Cells))
			for i, cell := range header.Cells {
				values[i] = cell.Value
			}
			Expect(values).To(Equal([]string{"순번", "날짜", "상호명", "금액", "비고"}))
		})

		It("writes one row per item in order", func() {
			first := sheet.Rows[1]
			Expect(first.Cells[1].Value).To(Equal("2024-03-15"))
			Expect(first.Cells[2].Value).To(Equal("편의점24"))

			second := sheet.Rows[2]
			Expect(second.Cells[2].Value).To(Equal("스타벅스"))
			Expect(second.Cells[4].Value).To(Equal("커피"))
		})

		It("numbers the rows from one", func() {
			n, err := sheet.Rows[1].Cells[0].Int()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			n, err = sheet.Rows[2].Cells[0].Int()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})

		It("writes the amounts as numbers", func() {
			amount, err := sheet.Rows[1].Cells[3].Int()
			Expect(err).NotTo(HaveOccurred())
			Expect(amount).To(Equal(4500))
		})

		It("appends a total row summing the amounts", func() {
			totalRow := sheet.Rows[3]
			Expect(totalRow.Cells[0].Value).To(Equal("합계"))

			total, err := totalRow.Cells[3].Int()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(10000))
		})
	})

	When("exporting an empty table", func() {
		BeforeEach(func() {
			items = nil
		})

		It("still writes the header and a zero total", func() {
			Expect(sheet.Rows[0].Cells[0].Value).To(Equal("순번"))

			totalRow := sheet.Rows[1]
			Expect(totalRow.Cells[0].Value).To(Equal("합계"))
			total, err := totalRow.Cells[3].Int()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(0))
		})
	})
})

var _ = Describe("ExportFilename", func() {
	It("names the download after the export date", func() {
		now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
		Expect(ExportFilename(now)).To(Equal("영수증_정리_2024-03-15.xlsx"))
	})
})
