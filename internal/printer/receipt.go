package printer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/oklog/ulid/v2"

	"receipt-print/internal/escpos"
)

// ItemNameWidth is the number of characters of an item name that are printed
const ItemNameWidth = 16

const (
	dateLayout = "1/2/2006"
	timeLayout = "3:04:05 PM"
)

// document is the variable part of a receipt; the framing is shared
type document struct {
	op      string
	meta    []string
	summary []string
	footer  []string
}

// PrintReceipt prints a sales receipt for tx. It returns false as soon as
// any write fails; bytes already sent are not recalled.
func (c *Client) PrintReceipt(ctx context.Context, tx Transaction, biz BusinessInfo) bool {
	now := c.now()
	receiptNo := tx.ReceiptNumber
	if receiptNo == "" {
		receiptNo = strconv.FormatInt(now.UnixMilli(), 10)
	}

	return c.printDocument(ctx, tx, biz, document{
		op: "print receipt",
		meta: []string{
			"Receipt #: " + receiptNo,
			"Date: " + now.Format(dateLayout),
			"Time: " + now.Format(timeLayout),
		},
		summary: []string{
			"Subtotal: " + tx.Subtotal.Format(),
			"Tax: " + tx.Tax.Format(),
			"Discount: " + tx.Discount.Format(),
			"Total: " + tx.Total.Format(),
			"Amount Received: " + tx.amountTendered(),
			"Change: " + tx.Change.Format(),
		},
		footer: []string{
			"Thank you for your business!",
			"Items sold are not returnable",
		},
	})
}

// PrintPurchaseReceipt prints a purchase-order receipt for tx
func (c *Client) PrintPurchaseReceipt(ctx context.Context, tx Transaction, biz BusinessInfo) bool {
	now := c.now()
	orderNo := tx.OrderNumber
	if orderNo == "" {
		orderNo = "PO-" + strconv.FormatInt(now.UnixMilli(), 10)
	}

	meta := []string{
		"Order #: " + orderNo,
		"Date: " + now.Format(dateLayout),
		"Time: " + now.Format(timeLayout),
	}
	if tx.Supplier != "" {
		meta = append(meta, "Supplier: "+tx.Supplier)
	}

	return c.printDocument(ctx, tx, biz, document{
		op:   "print purchase receipt",
		meta: meta,
		summary: []string{
			"Subtotal: " + tx.Subtotal.Format(),
			"Discount: " + tx.Discount.Format(),
			"Total: " + tx.Total.Format(),
			"Amount Paid: " + tx.amountTendered(),
			"Change: " + tx.Change.Format(),
		},
		footer: []string{
			"Thank you for your business!",
			"Items purchased are not returnable",
		},
	})
}

func (c *Client) printDocument(ctx context.Context, tx Transaction, biz BusinessInfo, doc document) bool {
	job := ulid.Make().String()
	log := c.logger.With("job", job, "op", doc.op)
	log.Debug("print job started", "items", len(tx.Items))

	w := &stepWriter{ctx: ctx, c: c}

	w.command(escpos.Initialize())
	if len(c.codeTable) > 0 {
		w.command(c.codeTable)
	}
	w.command(escpos.Align(escpos.AlignCenter))
	if len(c.header) > 0 {
		w.command(c.header)
	}
	for _, field := range []string{biz.Name, biz.Address, biz.Phone} {
		if field != "" {
			w.line(field)
		}
	}
	w.text(escpos.Separator)

	w.command(escpos.Align(escpos.AlignLeft))
	for _, l := range doc.meta {
		w.line(l)
	}
	w.text(escpos.Separator)

	for _, it := range tx.Items {
		w.line(truncate(it.Name, ItemNameWidth))
		w.line(fmt.Sprintf("  %s x %s = %s", it.quantityText(), it.Price.Format(), it.lineTotal().Format()))
	}
	w.text(escpos.Separator)

	for _, l := range doc.summary {
		w.line(l)
	}
	w.text(escpos.Separator)

	w.command(escpos.Align(escpos.AlignCenter))
	for _, l := range doc.footer {
		w.line(l)
	}

	w.command(escpos.FeedLines(2))
	w.command(escpos.PartialCut())

	c.setLastErr(w.err)
	if w.err != nil {
		log.Error("print job abandoned", "writes", w.writes, "kind", KindOf(w.err).String(), "err", w.err)
		return false
	}
	log.Info("print job completed", "writes", w.writes)
	return true
}

// stepWriter issues one write per call and stops at the first failure
type stepWriter struct {
	ctx    context.Context
	c      *Client
	writes int
	err    error
}

func (w *stepWriter) command(b []byte) {
	if w.err != nil {
		return
	}
	w.err = w.c.sendRaw(w.ctx, "send commands", b)
	w.count()
}

func (w *stepWriter) text(s string) {
	if w.err != nil {
		return
	}
	w.err = w.c.sendText(w.ctx, s)
	w.count()
}

func (w *stepWriter) line(s string) {
	w.text(s + "\n")
}

func (w *stepWriter) count() {
	if w.err == nil {
		w.writes++
	}
}

// truncate cuts s to at most n characters
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
