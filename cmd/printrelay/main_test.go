package main

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakePrinter accepts one connection and returns everything written to it.
func fakePrinter(t *testing.T) (addr string, received <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		ch <- data
	}()
	return ln.Addr().String(), ch
}

func imageRequest(t *testing.T, field string) *http.Request {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("printer", "bar"); err != nil {
		t.Fatalf("write printer field: %v", err)
	}
	part, err := w.CreateFormFile(field, "poster.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/print/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestPrintImageAcceptsFileField(t *testing.T) {
	addr, received := fakePrinter(t)
	rl := &relay{printers: map[string]string{"bar": addr}, timeout: time.Second}

	rec := httptest.NewRecorder()
	rl.handlePrintImage(rec, imageRequest(t, "file"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", rec.Code, rec.Body.String())
	}
	select {
	case data := <-received:
		if !bytes.Contains(data, []byte{0x1D, 'v', '0'}) {
			t.Errorf("printer stream missing raster command: % X", data[:min(len(data), 16)])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
}

func TestPrintImageAcceptsLegacyImageField(t *testing.T) {
	addr, _ := fakePrinter(t)
	rl := &relay{printers: map[string]string{"bar": addr}, timeout: time.Second}

	rec := httptest.NewRecorder()
	rl.handlePrintImage(rec, imageRequest(t, "image"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestPrintImageMissingFile(t *testing.T) {
	rl := &relay{printers: map[string]string{}, timeout: time.Second}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("printer", "bar") //nolint:errcheck
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/print/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	rl.handlePrintImage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAmountLinePadsToPaperWidth(t *testing.T) {
	line := amountLine("TONG CONG", "120000")
	if len(line) != paperColumns {
		t.Errorf("line width: got %d, want %d", len(line), paperColumns)
	}
	if !strings.HasPrefix(line, "TONG CONG") || !strings.HasSuffix(line, "120000") {
		t.Errorf("line: %q", line)
	}
}
