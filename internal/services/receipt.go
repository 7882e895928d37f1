package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"harvestlink/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Receipt renders a PDF receipt for an order the caller is a party to and
// returns it with a suggested file name.
func (s *OrderService) Receipt(actor Actor, id string) ([]byte, string, error) {
	order, err := s.GetForActor(actor, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := RenderReceipt(order)
	if err != nil {
		return nil, "", err
	}
	return pdf, "receipt-" + order.ID + ".pdf", nil
}

// RenderReceipt lays out the order's lines, total and status, with a QR code
// carrying the order reference.
func RenderReceipt(order *models.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode("harvestlink:order:"+order.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("HarvestLink receipt "+order.ID, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "HarvestLink Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	header := []string{
		"Order: " + order.ID,
		"Date: " + order.OrderDate.Format(time.RFC1123),
		"Status: " + strings.ReplaceAll(string(order.Status), "_", " "),
		"Customer: " + order.CustomerName,
	}
	if order.DeliveryAddress != "" {
		header = append(header, "Deliver to: "+order.DeliveryAddress)
	} else {
		header = append(header, "Pickup: "+order.PickupInstructions)
	}
	if order.DeliveryDate != nil {
		header = append(header, "Delivery date: "+order.DeliveryDate.Format("2006-01-02"))
	}
	for _, line := range header {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 20, 35, 35, false, imageOpts, 0, "")

	pdf.Ln(6)
	widths := []float64{80, 25, 30, 25, 30}
	pdf.SetFont("Arial", "B", 11)
	for i, h := range []string{"Product", "Unit", "Price", "Qty", "Amount"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 11)
	for _, item := range order.Items {
		pdf.CellFormat(widths[0], 7, tr(item.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(item.Unit), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%.2f", item.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%.2f", item.Price*float64(item.Quantity)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 8, fmt.Sprintf("%.2f", order.TotalAmount), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	if order.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 10)
		pdf.MultiCell(0, 6, tr("Notes: "+order.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
