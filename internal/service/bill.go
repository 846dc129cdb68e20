package service

import (
	"net/url"

	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// BillLine is one printable line of a bill.
type BillLine struct {
	Name      string
	Quantity  int32
	Note      string
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Bill is a composed bill. Amounts are whole VND.
type Bill struct {
	Lines    []BillLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	ExtraFee decimal.Decimal
	Total    decimal.Decimal
}

// ComposeBill prices the order's lines and totals them. Cancelled items are
// skipped. The unit price prefers the price frozen on the item (custom
// lines), then the current catalog price, then zero for off-menu leftovers.
// Total is subtotal - discount + extraFee, deliberately unclamped: a
// discount larger than the subtotal shows up as a negative total for the
// cashier to notice instead of being silently floored.
func ComposeBill(items []database.OrderItem, prices map[string]decimal.Decimal, discount, extraFee decimal.Decimal) Bill {
	bill := Bill{
		Subtotal: decimal.Zero,
		Discount: discount,
		ExtraFee: extraFee,
	}

	for _, it := range items {
		if it.Status == enum.ItemStatusCancel {
			continue
		}

		unit := decimal.Zero
		if it.Price.Valid {
			unit = numericToDecimal(it.Price)
		} else if p, ok := prices[it.Name]; ok {
			unit = p
		}

		lineTotal := unit.Mul(decimal.NewFromInt32(it.Quantity))
		bill.Lines = append(bill.Lines, BillLine{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Note:      it.Note.String,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		bill.Subtotal = bill.Subtotal.Add(lineTotal)
	}

	bill.Total = bill.Subtotal.Sub(discount).Add(extraFee)
	return bill
}

// VietQRURL builds the VietQR image URL printed on bills so guests can scan
// to pay by bank transfer. The order code goes into the transfer memo.
func VietQRURL(bankBin, account string, amount decimal.Decimal, orderCode string) string {
	q := url.Values{}
	q.Set("amount", amount.StringFixed(0))
	q.Set("addInfo", orderCode)
	return "https://img.vietqr.io/image/" + bankBin + "-" + account + "-print.png?" + q.Encode()
}
