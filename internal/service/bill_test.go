package service

import (
	"strings"
	"testing"

	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComposeBillPricesFromCatalog(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Pho bo tai", Quantity: 2, Status: enum.ItemStatusServed},
		{Name: "Tra da", Quantity: 3, Status: enum.ItemStatusServed},
	}
	prices := map[string]decimal.Decimal{
		"Pho bo tai": dec("55000"),
		"Tra da":     dec("5000"),
	}

	bill := ComposeBill(items, prices, decimal.Zero, decimal.Zero)

	if len(bill.Lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(bill.Lines))
	}
	if !bill.Lines[0].LineTotal.Equal(dec("110000")) {
		t.Errorf("line 0 total: got %s, want 110000", bill.Lines[0].LineTotal)
	}
	if !bill.Subtotal.Equal(dec("125000")) {
		t.Errorf("subtotal: got %s, want 125000", bill.Subtotal)
	}
	if !bill.Total.Equal(dec("125000")) {
		t.Errorf("total: got %s, want 125000", bill.Total)
	}
}

func TestComposeBillFrozenPriceWins(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Pho bo tai", Quantity: 1, Status: enum.ItemStatusServed, Price: makeNumeric("40000")},
	}
	prices := map[string]decimal.Decimal{"Pho bo tai": dec("55000")}

	bill := ComposeBill(items, prices, decimal.Zero, decimal.Zero)

	if !bill.Total.Equal(dec("40000")) {
		t.Errorf("total: got %s, want frozen 40000", bill.Total)
	}
}

func TestComposeBillUnknownItemIsFree(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Mon da xoa", Quantity: 2, Status: enum.ItemStatusServed},
	}

	bill := ComposeBill(items, nil, decimal.Zero, decimal.Zero)

	if len(bill.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1", len(bill.Lines))
	}
	if !bill.Lines[0].UnitPrice.IsZero() {
		t.Errorf("unit price: got %s, want 0", bill.Lines[0].UnitPrice)
	}
}

func TestComposeBillSkipsCancelled(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Pho ga", Quantity: 1, Status: enum.ItemStatusServed},
		{Name: "Bun cha", Quantity: 5, Status: enum.ItemStatusCancel},
	}
	prices := map[string]decimal.Decimal{
		"Pho ga":  dec("50000"),
		"Bun cha": dec("60000"),
	}

	bill := ComposeBill(items, prices, decimal.Zero, decimal.Zero)

	if len(bill.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1 (cancelled skipped)", len(bill.Lines))
	}
	if !bill.Subtotal.Equal(dec("50000")) {
		t.Errorf("subtotal: got %s, want 50000", bill.Subtotal)
	}
}

func TestComposeBillDiscountAndFee(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Pho ga", Quantity: 2, Status: enum.ItemStatusServed},
	}
	prices := map[string]decimal.Decimal{"Pho ga": dec("50000")}

	bill := ComposeBill(items, prices, dec("20000"), dec("5000"))

	if !bill.Total.Equal(dec("85000")) {
		t.Errorf("total: got %s, want 100000 - 20000 + 5000 = 85000", bill.Total)
	}
}

func TestComposeBillOverDiscountGoesNegative(t *testing.T) {
	items := []database.OrderItem{
		{Name: "Tra da", Quantity: 1, Status: enum.ItemStatusServed},
	}
	prices := map[string]decimal.Decimal{"Tra da": dec("5000")}

	bill := ComposeBill(items, prices, dec("10000"), decimal.Zero)

	if !bill.Total.Equal(dec("-5000")) {
		t.Errorf("total: got %s, want -5000 (unclamped)", bill.Total)
	}
}

func TestVietQRURL(t *testing.T) {
	url := VietQRURL("970403", "TNG50523114517", dec("125000"), "01062025/A3/001")

	if !strings.HasPrefix(url, "https://img.vietqr.io/image/970403-TNG50523114517-print.png?") {
		t.Errorf("unexpected prefix: %s", url)
	}
	if !strings.Contains(url, "amount=125000") {
		t.Errorf("missing amount: %s", url)
	}
	if !strings.Contains(url, "addInfo=01062025%2FA3%2F001") {
		t.Errorf("missing encoded order code: %s", url)
	}
}
