// The print relay sits on the restaurant LAN and turns print requests
// into raw ESC/POS streams for the thermal printers. It is the only
// process that talks to printer hardware; the API server only ever sees
// HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phovang-pos/api/internal/escpos"
	"github.com/phovang-pos/api/internal/printing"
)

// 80mm paper, font A: 48 columns.
const paperColumns = 48

type relay struct {
	// printer name -> tcp address, e.g. "bep" -> "192.168.1.51:9100".
	printers map[string]string
	timeout  time.Duration
}

func main() {
	port := getEnv("PORT", "5000")
	r := &relay{
		printers: map[string]string{
			"bar": getEnv("PRINTER_BAR_ADDR", "192.168.1.50:9100"),
			"bep": getEnv("PRINTER_BEP_ADDR", "192.168.1.51:9100"),
		},
		timeout: 10 * time.Second,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Logger)
	mux.Use(chimw.Recoverer)
	mux.Post("/print", r.handlePrint)
	mux.Post("/print/image", r.handlePrintImage)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("print relay listening on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("relay: %v", err)
	}
}

func (rl *relay) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printing.PrintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var doc *escpos.Document
	switch {
	case req.Ticket != nil:
		doc = renderTicket(req.Ticket)
	case req.Bill != nil:
		doc = renderBill(req.Bill)
	default:
		writeStatus(w, http.StatusBadRequest, "ticket or bill is required")
		return
	}

	if err := rl.send(req.Printer, doc.Bytes()); err != nil {
		log.Printf("ERROR: print to %s: %v", req.Printer, err)
		writeStatus(w, http.StatusBadGateway, err.Error())
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

// handlePrintImage prints an uploaded PNG, used for promotional QR posters
// and end-of-day report snapshots.
func (rl *relay) handlePrintImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	printer := r.FormValue("printer")
	file, _, err := r.FormFile("file")
	if err != nil {
		// Older clients upload under "image".
		file, _, err = r.FormFile("image")
	}
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid PNG")
		return
	}

	doc := escpos.NewDocument().
		Align(escpos.AlignCenter).
		Raster(img, escpos.Width80mm).
		Cut()

	if err := rl.send(printer, doc.Bytes()); err != nil {
		log.Printf("ERROR: print image to %s: %v", printer, err)
		writeStatus(w, http.StatusBadGateway, err.Error())
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

func (rl *relay) send(printer string, data []byte) error {
	addr, ok := rl.printers[printer]
	if !ok {
		return fmt.Errorf("unknown printer %q", printer)
	}

	conn, err := net.DialTimeout("tcp", addr, rl.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(rl.timeout))
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write to %s: %w", addr, err)
	}
	return nil
}

func renderTicket(t *printing.TicketPayload) *escpos.Document {
	doc := escpos.NewDocument().
		Align(escpos.AlignCenter).
		Size(1, 1).
		Line(t.TableName).
		Size(0, 0).
		Line(t.OrderCode).
		Line(t.QueuedAt.Local().Format("15:04 02/01/2006")).
		Align(escpos.AlignLeft).
		Divider(paperColumns)

	for _, l := range t.Lines {
		doc.Bold(true).Line(fmt.Sprintf("%dx %s", l.Quantity, l.Name)).Bold(false)
		if l.Note != "" {
			doc.Line("   " + l.Note)
		}
	}

	return doc.Cut()
}

func renderBill(b *printing.BillPayload) *escpos.Document {
	doc := escpos.NewDocument().
		Align(escpos.AlignCenter).
		Size(1, 1).
		Line("PHO VANG").
		Size(0, 0).
		Line("Ma don: " + b.OrderCode).
		Line("Ban: " + b.TableName).
		Line(b.PrintedAt.Local().Format("15:04 02/01/2006")).
		Align(escpos.AlignLeft).
		Divider(paperColumns)

	for _, l := range b.Lines {
		doc.Line(amountLine(fmt.Sprintf("%dx %s", l.Quantity, l.Name), l.LineTotal))
		if l.Note != "" {
			doc.Line("   " + l.Note)
		}
	}

	doc.Divider(paperColumns)
	doc.Line(amountLine("Tam tinh", b.Subtotal))
	if b.Discount != "" && b.Discount != "0" {
		doc.Line(amountLine("Giam gia", "-"+b.Discount))
	}
	if b.ExtraFee != "" && b.ExtraFee != "0" {
		doc.Line(amountLine("Phu thu", b.ExtraFee))
	}
	doc.Bold(true).Line(amountLine("TONG CONG", b.Total)).Bold(false)

	if b.Note != "" {
		doc.Divider(paperColumns)
		doc.Line(b.Note)
	}
	if b.QRCodeURL != "" {
		doc.Feed(1).
			Align(escpos.AlignCenter).
			Line("Quet QR de chuyen khoan:").
			Line(b.QRCodeURL).
			Align(escpos.AlignLeft)
	}

	doc.Feed(1).Align(escpos.AlignCenter).Line("Cam on quy khach!")
	return doc.Cut()
}

// amountLine pads the label left and the amount right on one paper row.
func amountLine(label, amount string) string {
	pad := paperColumns - len(label) - len(amount)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + amount
}

func writeStatus(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	status := "ok"
	if code != http.StatusOK {
		status = "error"
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "message": msg})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
