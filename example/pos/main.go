// Command pos is a traffic generator: it drives realistic point-of-sale
// writes (tb_order headers, tb_suborder line items) against a local MySQL
// instance so mysqlwired has something to observe on the loopback
// interface during manual end-to-end verification.
//
// Adapted from the teacher's example/mysql/main.go (connect-and-loop
// shape, signal.NotifyContext shutdown, ticker-paced iterations); the
// query bodies themselves are new, modeled on the tb_order/tb_suborder
// schema implied by original_source/python_packetSnip/main.py's
// business-parameter convention (seat at index 9, total_price at 7,
// order_time at 16).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const defaultDSN = "pos:pos@tcp(localhost:3306)/pos?parseTime=true"

// insertOrder mirrors the 19-parameter tb_order shape spec.md's S5
// scenario classifies: param 7 is total_price, param 9 is seat_no, param
// 16 is order_time.
const insertOrder = `INSERT INTO tb_order (
	store_id, table_id, status, item_count, channel, discount, tax,
	total_price, payment_method, seat_no, memo, cashier_id, promo_code,
	subtotal, rounding, currency, order_time, updated_by, source
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertSuborder = `INSERT INTO tb_suborder (
	order_id, line_no, menu_id, qty, unit_price, option_json, discount,
	total_price, tax_rate, seat_no, note, prepared_by, station, combo_id,
	voided, currency, order_time, updated_by, source
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const preparedStmtID = "SELECT id FROM tb_order WHERE store_id = ? ORDER BY id DESC LIMIT 1"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func getDSN() string {
	if v := os.Getenv("POS_DATABASE_DSN"); v != "" {
		return v
	}
	return defaultDSN
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dsn := getDSN()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Printf("connected to mysql via %s\n", dsn)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for i := 1; ; i++ {
		placeOrder(ctx, db, i)
		placeSuborder(ctx, db, i)
		lookupLastOrder(ctx, db, i)

		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func placeOrder(ctx context.Context, db *sql.DB, i int) {
	seat := i%60 + 1
	total := 4500 + (i%20)*500
	now := time.Now().Format("2006-01-02 15:04:05")

	_, err := db.ExecContext(ctx, insertOrder,
		1, seat%12+1, "OPEN", i%5+1, "POS", 0, 0,
		total, "CARD", fmt.Sprintf("%d", seat), "", "cashier-1", "",
		total, 0, "KRW", now, "cashier-1", "pos-sim",
	)
	if err != nil {
		log.Printf("insert order: %v", err)
		return
	}
	fmt.Printf("[%d] order placed: seat=%d total=%d\n", i, seat, total)
}

func placeSuborder(ctx context.Context, db *sql.DB, i int) {
	seat := i%60 + 1
	unitPrice := 1500 + (i%10)*250
	now := time.Now().Format("2006-01-02 15:04:05")

	_, err := db.ExecContext(ctx, insertSuborder,
		i, 1, 100+i%30, 1, unitPrice, "{}", 0,
		unitPrice, 0.1, fmt.Sprintf("%d", seat), "", "kitchen-1", "grill", 0,
		0, "KRW", now, "kitchen-1", "pos-sim",
	)
	if err != nil {
		log.Printf("insert suborder: %v", err)
		return
	}
	fmt.Printf("[%d] suborder placed: seat=%d unit_price=%d\n", i, seat, unitPrice)
}

func lookupLastOrder(ctx context.Context, db *sql.DB, i int) {
	var id int
	if err := db.QueryRowContext(ctx, preparedStmtID, 1).Scan(&id); err != nil {
		log.Printf("lookup last order: %v", err)
		return
	}
	fmt.Printf("[%d] last order id for store 1: %d\n", i, id)
}
